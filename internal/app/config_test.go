package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		SkipFiles: true,
		SkipFlags: true,
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadTestConfig(t, nil)
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "storefront/", cfg.Storage.Prefix)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	cfg, err := loadTestConfig(t, map[string]string{
		"PORT":                       "9090",
		"DATABASE_URL":               "postgres://localhost/storefront",
		"STOREFRONT_STORAGE_BACKEND": BackendPostgres,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "postgres://localhost/storefront", cfg.Storage.DatabaseURL)

	cfg, err = loadTestConfig(t, map[string]string{
		"REDIS_URL":                  "redis://localhost:6379/1",
		"STOREFRONT_STORAGE_BACKEND": BackendRedis,
	})
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Storage.RedisAddr)
}

func TestConfig_Validate(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Storage: StorageConfig{Backend: BackendMemory}}, true},
		{"file", Config{Storage: StorageConfig{Backend: BackendFile, Dir: "data"}}, true},
		{"file without dir", Config{Storage: StorageConfig{Backend: BackendFile}}, false},
		{"redis without addr", Config{Storage: StorageConfig{Backend: BackendRedis}}, false},
		{"postgres without url", Config{Storage: StorageConfig{Backend: BackendPostgres}}, false},
		{"unknown", Config{Storage: StorageConfig{Backend: "sqlite"}}, false},
		{"negative quota", Config{Storage: StorageConfig{Backend: BackendMemory, Quota: -1}}, false},
		{"keys without pepper", Config{
			Storage:  StorageConfig{Backend: BackendMemory},
			Operator: OperatorConfig{KeyHashes: []string{"ab"}},
		}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
