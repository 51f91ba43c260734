package mongodb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	assert.Len(t, idx, 4)

	tenants := idx[colTenants]
	if assert.Len(t, tenants, 1) {
		assert.Equal(t, bson.D{{Key: "subscription.external_subscription_id", Value: 1}}, tenants[0].Keys)
		assert.NotNil(t, tenants[0].Options)
	}
	txns := idx[colTransactions]
	if assert.NotEmpty(t, txns) {
		assert.Equal(t, bson.D{{Key: "tenant_id", Value: 1}, {Key: "payment_id", Value: 1}}, txns[0].Keys)
		assert.NotNil(t, txns[0].Options)
	}
}

func TestIsNoDocuments(t *testing.T) {
	assert.True(t, isNoDocuments(mongo.ErrNoDocuments))
	assert.True(t, isNoDocuments(fmt.Errorf("wrapped: %w", mongo.ErrNoDocuments)))
	assert.False(t, isNoDocuments(errors.New("other")))
}
