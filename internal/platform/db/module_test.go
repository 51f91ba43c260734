package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/platform/memstore"
	cfgpkg "github.com/fatflowers/clinicbilling/pkg/config"
)

func TestNewStore(t *testing.T) {
	l := zap.NewNop().Sugar()

	t.Run("memory", func(t *testing.T) {
		s, err := NewStore(l, &cfgpkg.Config{Database: cfgpkg.DBConfig{Driver: cfgpkg.DBDriverMemory}})
		require.NoError(t, err)
		assert.IsType(t, &memstore.Store{}, s)
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		_, err := NewStore(l, &cfgpkg.Config{Database: cfgpkg.DBConfig{Driver: cfgpkg.DBDriverPostgres}})
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewStore(l, &cfgpkg.Config{Database: cfgpkg.DBConfig{Driver: "sqlite"}})
		assert.ErrorContains(t, err, "unknown database driver")
	})
}
