package db

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/platform/memstore"
	"github.com/fatflowers/clinicbilling/internal/platform/mongodb"
	cfgpkg "github.com/fatflowers/clinicbilling/pkg/config"
)

var Module = fx.Options(
	fx.Provide(NewStore),
	fx.Invoke(registerStoreClose),
)

// NewStore opens the backend selected by database.driver.
func NewStore(l *zap.SugaredLogger, cfg *cfgpkg.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case cfgpkg.DBDriverPostgres:
		gdb, err := NewDB(l, cfg)
		if err != nil {
			return nil, err
		}
		if err := AutoMigrate(l, gdb); err != nil {
			return nil, err
		}
		return NewGormStore(gdb, l), nil
	case cfgpkg.DBDriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
		defer cancel()
		s, err := mongodb.Connect(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase, l)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			l.Errorf("mongodb migrate failed: %v", err)
			return nil, err
		}
		return s, nil
	case cfgpkg.DBDriverMemory:
		l.Warnw("using in-memory store; data is lost on restart")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// registerStoreClose releases the backend on shutdown
func registerStoreClose(lc fx.Lifecycle, s store.Store) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close(ctx)
		},
	})
}
