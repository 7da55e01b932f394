package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoClientOptions_PoolFromConfig(t *testing.T) {
	opts := mongoClientOptions("mongodb://localhost:27017", 20)

	require.NotNil(t, opts.MaxPoolSize)
	require.NotNil(t, opts.MinPoolSize)
	assert.Equal(t, uint64(20), *opts.MaxPoolSize)
	assert.Equal(t, uint64(2), *opts.MinPoolSize)
	assert.Equal(t, "storefront", *opts.AppName)
}

func TestMongoClientOptions_NonPositiveUsesDefault(t *testing.T) {
	for _, size := range []int{0, -5} {
		opts := mongoClientOptions("mongodb://localhost:27017", size)
		assert.Equal(t, uint64(defaultMongoPoolSize), *opts.MaxPoolSize)
		assert.Equal(t, uint64(defaultMongoPoolSize/10), *opts.MinPoolSize)
	}
}

func TestConnectMongoDB_UnreachableFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := ConnectMongoDB(ctx, "mongodb://127.0.0.1:1", "testdb", 5)
	assert.ErrorContains(t, err, "failed to ping MongoDB")
}
