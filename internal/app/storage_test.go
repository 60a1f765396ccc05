package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront-kart/internal/storefront"
)

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	for _, cfg := range []StorageConfig{
		{Backend: BackendMemory},
		{Backend: BackendFile, Dir: t.TempDir()},
		{Backend: BackendRedis, RedisAddr: mr.Addr()},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			store, closeStore, err := OpenStorage(ctx, zaptest.NewLogger(t), cfg)
			require.NoError(t, err)
			defer closeStore()

			require.NoError(t, store.Ping(ctx))
			svc, err := storefront.New(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, 0, svc.ProductCount(ctx))
		})
	}

	_, _, err := OpenStorage(ctx, zaptest.NewLogger(t), StorageConfig{Backend: "sqlite"})
	require.Error(t, err)
}
