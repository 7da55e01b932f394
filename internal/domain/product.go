package domain

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Variant overrides product price and image when those are set.
type Variant struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	Color     string   `json:"color,omitempty"`
	Size      string   `json:"size,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
}
