// Package mongodb is the document-store backend. Tenant mutations use
// multi-document transactions, which need a replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
)

// Collection name constants.
const (
	colTenants          = "tenants"
	colTransactions     = "payment_transactions"
	colSubscriptionLogs = "subscription_logs"
	colNotificationLogs = "notification_logs"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.SugaredLogger
}

// Connect dials uri and returns a Store over database.
func Connect(ctx context.Context, uri, database string, l *zap.SugaredLogger) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	l.Infow("connected to mongodb", "database", database)
	return &Store{client: client, db: client.Database(database), log: l}, nil
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, idx := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("mongodb: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colTenants: {
			{
				Keys:    bson.D{{Key: "subscription.external_subscription_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		colTransactions: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "payment_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "processed_at", Value: -1}}},
		},
		colSubscriptionLogs: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colNotificationLogs: {
			{Keys: bson.D{{Key: "event_id", Value: 1}}},
		},
	}
}

func (s *Store) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now().UTC()
	tenant.CreatedAt, tenant.UpdatedAt = now, now
	if _, err := s.db.Collection(colTenants).InsertOne(ctx, tenant); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("mongodb: create tenant: %w", err)
	}
	return nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.Collection(colTenants).FindOne(ctx, bson.M{"_id": tenantID}).Decode(&t); err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: get tenant: %w", err)
	}
	return &t, nil
}

func (s *Store) FindTenantBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.Collection(colTenants).
		FindOne(ctx,
			bson.M{"subscription.external_subscription_id": subscriptionID},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}),
		).Decode(&t)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: find tenant by subscription: %w", err)
	}
	return &t, nil
}

func (s *Store) MutateTenant(ctx context.Context, tenantID string, fn store.MutateFunc) (*models.Tenant, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongodb: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		t, err := s.GetTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		readVersion := t.Version

		txn, err := fn(ctx, t, s)
		if err != nil {
			return nil, err
		}

		t.Version = readVersion + 1
		t.UpdatedAt = time.Now().UTC()
		upd, err := s.db.Collection(colTenants).ReplaceOne(ctx, bson.M{"_id": tenantID, "version": readVersion}, t)
		if err != nil {
			return nil, fmt.Errorf("mongodb: update tenant: %w", err)
		}
		if upd.MatchedCount == 0 {
			return nil, store.ErrConflict
		}

		if txn != nil {
			txn.TenantID = tenantID
			txn.UpdatedAt = t.UpdatedAt
			if txn.CreatedAt.IsZero() {
				txn.CreatedAt = t.UpdatedAt
			}
			_, err := s.db.Collection(colTransactions).ReplaceOne(ctx,
				bson.M{"tenant_id": tenantID, "payment_id": txn.ID},
				txn,
				options.Replace().SetUpsert(true),
			)
			if err != nil {
				return nil, fmt.Errorf("mongodb: upsert transaction: %w", err)
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.Tenant), nil
}

func (s *Store) GetTransaction(ctx context.Context, tenantID, paymentID string) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := s.db.Collection(colTransactions).FindOne(ctx, bson.M{"tenant_id": tenantID, "payment_id": paymentID}).Decode(&t)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: get transaction: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTransactions(ctx context.Context, tenantID string, from, size int) ([]*models.PaymentTransaction, int64, error) {
	filter := bson.M{"tenant_id": tenantID}
	col := s.db.Collection(colTransactions)
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongodb: count transactions: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "processed_at", Value: -1}, {Key: "payment_id", Value: -1}}).
		SetSkip(int64(from)).
		SetLimit(int64(size))
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongodb: list transactions: %w", err)
	}
	items := []*models.PaymentTransaction{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("mongodb: decode transactions: %w", err)
	}
	return items, total, nil
}

func (s *Store) SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(colSubscriptionLogs).InsertOne(ctx, log)
	return err
}

func (s *Store) SaveNotificationLog(ctx context.Context, log *models.PaymentNotificationLog) error {
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	_, err := s.db.Collection(colNotificationLogs).ReplaceOne(ctx, bson.M{"_id": log.ID}, log, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	s.log.Infow("closing mongodb client")
	return s.client.Disconnect(ctx)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
