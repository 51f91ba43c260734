package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	cfgpkg "github.com/fatflowers/clinicbilling/pkg/config"
	gormzap "github.com/fatflowers/clinicbilling/pkg/gormlog"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:         gormzap.New(l, cfg.Env == cfgpkg.EnvDev),
		TranslateError: true,
	})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to postgres via DSN")
	return db, nil
}

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.PaymentTransaction{},
		&models.SubscriptionLog{},
		&models.PaymentNotificationLog{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// GormStore is the relational Store. Tenant mutations take a row lock and
// also check the version column.
type GormStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

var _ store.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, l *zap.SugaredLogger) *GormStore {
	return &GormStore{db: db, log: l}
}

func (s *GormStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if err := s.db.WithContext(ctx).Create(tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (s *GormStore) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return getTenant(s.db.WithContext(ctx), tenantID)
}

func getTenant(tx *gorm.DB, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	if err := tx.Where("id = ?", tenantID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

func (s *GormStore) FindTenantBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.WithContext(ctx).
		Where("subscription_external_subscription_id = ?", subscriptionID).
		Order("created_at asc").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find tenant by subscription: %w", err)
	}
	return &t, nil
}

func (s *GormStore) MutateTenant(ctx context.Context, tenantID string, fn store.MutateFunc) (*models.Tenant, error) {
	var out *models.Tenant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := getTenant(tx.Clauses(clause.Locking{Strength: "UPDATE"}), tenantID)
		if err != nil {
			return err
		}
		readVersion := t.Version

		txn, err := fn(ctx, t, gormReader{tx: tx})
		if err != nil {
			return err
		}

		t.Version = readVersion + 1
		t.UpdatedAt = time.Now()
		res := tx.Model(t).Where("version = ?", readVersion).Select("*").Omit("created_at").Updates(t)
		if res.Error != nil {
			return fmt.Errorf("failed to update tenant: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrConflict
		}

		if txn != nil {
			txn.TenantID = tenantID
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(txn).Error; err != nil {
				return fmt.Errorf("failed to upsert transaction: %w", err)
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) GetTransaction(ctx context.Context, tenantID, paymentID string) (*models.PaymentTransaction, error) {
	return gormReader{tx: s.db}.GetTransaction(ctx, tenantID, paymentID)
}

func (s *GormStore) ListTransactions(ctx context.Context, tenantID string, from, size int) ([]*models.PaymentTransaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Where("tenant_id = ?", tenantID).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	var items []*models.PaymentTransaction
	if err := q.Order("processed_at desc, id desc").Offset(from).Limit(size).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return items, total, nil
}

func (s *GormStore) SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

func (s *GormStore) SaveNotificationLog(ctx context.Context, log *models.PaymentNotificationLog) error {
	return s.db.WithContext(ctx).Save(log).Error
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		s.log.Warnw("gorm: get sql.DB failed", "err", err)
		return nil
	}
	s.log.Infow("closing postgres connection pool")
	return sqlDB.Close()
}

type gormReader struct{ tx *gorm.DB }

func (r gormReader) GetTransaction(ctx context.Context, tenantID, paymentID string) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	if err := r.tx.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, paymentID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}
