package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/postboard/postboard/config"
	"github.com/postboard/postboard/database"
	"github.com/postboard/postboard/web/cache"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointJob(t *testing.T) {
	cfg := config.GetDefaultDatabaseConfig()
	cfg.Type = config.DatabaseTypeSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "job.db")
	db, err := database.InitDB(cfg)
	require.NoError(t, err)

	j := NewCheckpointJob(db)
	j.Run()
	j.Run()
	assert.EqualValues(t, 2, j.Runs())

	// a busy job skips instead of stacking up
	j.running.Store(true)
	j.Run()
	assert.EqualValues(t, 2, j.Runs())
	j.running.Store(false)

	require.NoError(t, database.CloseDB(db))
	assert.NotPanics(t, j.Run)
	assert.EqualValues(t, 2, j.Runs())
	assert.False(t, j.running.Load())
}

func TestRedisExpireJob(t *testing.T) {
	r, err := cache.Open(context.Background(), "")
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	require.NoError(t, r.Client().Set(ctx, "short", "v", time.Millisecond).Err())
	time.Sleep(5 * time.Millisecond)

	NewRedisExpireJob(r).Run()
	assert.ErrorIs(t, r.Client().Get(ctx, "short").Err(), redis.Nil)
}
