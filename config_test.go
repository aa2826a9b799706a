package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg Config
		err := env.Unmarshal(env.EnvSet{
			"DB_URL":     "postgres://localhost/cove",
			"NATS_URL":   "nats://localhost:4222",
			"JWT_SECRET": "secret",
		}, &cfg)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
		assert.Equal(t, "nats", cfg.ObjectStore)
		assert.Equal(t, "COVE_MEDIA", cfg.ObjectBucket)
		assert.Equal(t, int64(5<<20), cfg.MaxPictureBytes)
		assert.Equal(t, 10*time.Second, cfg.SendTimeout)
		assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	})

	t.Run("missing_required", func(t *testing.T) {
		var cfg Config
		err := env.Unmarshal(env.EnvSet{"NATS_URL": "nats://localhost:4222"}, &cfg)
		require.Error(t, err)
	})

	tests := []struct {
		name    string
		extra   env.EnvSet
		wantErr bool
	}{
		{"badger_needs_a_path", env.EnvSet{"OBJECT_STORE": "badger"}, true},
		{"badger_with_path", env.EnvSet{"OBJECT_STORE": "badger", "BADGER_FILEPATH": "/tmp/cove"}, false},
		{"unknown_store", env.EnvSet{"OBJECT_STORE": "s3"}, true},
		{"bad_public_url", env.EnvSet{"PUBLIC_BASE_URL": "not a url"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := env.EnvSet{
				"DB_URL":     "postgres://localhost/cove",
				"NATS_URL":   "nats://localhost:4222",
				"JWT_SECRET": "secret",
			}
			for k, v := range tt.extra {
				es[k] = v
			}

			var cfg Config
			err := env.Unmarshal(es, &cfg)
			require.NoError(t, err)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("WARN").Enabled(ctx, slog.LevelInfo))
	assert.True(t, newLogger("nonsense").Enabled(ctx, slog.LevelInfo))
	assert.False(t, newLogger("nonsense").Enabled(ctx, slog.LevelDebug))
}
