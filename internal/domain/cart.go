package domain

import "time"

// CartItem is a line of the session cart as shown to the shopper.
type CartItem struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
	Color     string  `json:"color,omitempty"`
	Size      string  `json:"size,omitempty"`
}

// ID is the line identity: the product id, or product:variant for variants.
func (i CartItem) ID() string {
	return LineID(i.ProductID, i.VariantID)
}

func LineID(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + ":" + variantID
}

// Cart is the server-held cart of an authenticated user.
type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []ItemLine `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type ItemLine struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	VariantID string    `bson:"variant_id" json:"variant_id,omitempty"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Color     string    `bson:"color,omitempty" json:"color,omitempty"`
	Size      string    `bson:"size,omitempty" json:"size,omitempty"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

func (l ItemLine) ID() string {
	return LineID(l.ProductID, l.VariantID)
}

// CartRow is a server cart line joined with the current catalog values.
type CartRow struct {
	ItemLine
	Name  string
	Price float64
	Image string
}
