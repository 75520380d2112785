package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_AbsentFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

	assert.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 8, cfg.Scheduler.MaxParallelTasks)
	assert.Equal(t, 10, cfg.Scheduler.TaskMaxTries)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.PollInterval.Std())
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=ledger sslmode=disable", cfg.ConnectionString())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	content := `
server:
  port: "9090"
database:
  name: pecorino
redis:
  addr: redis:6379
scheduler:
  max_parallel_tasks: 4
  task_max_tries: 3
  poll_interval: 1s
  retry_interval: 5m
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)

	assert.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "pecorino", cfg.Database.Name)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 4, cfg.Scheduler.MaxParallelTasks)
	assert.Equal(t, 3, cfg.Scheduler.TaskMaxTries)
	assert.Equal(t, time.Second, cfg.Scheduler.PollInterval.Std())
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RetryInterval.Std())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	assert.NoError(t, os.WriteFile(path, []byte("database:\n  host: filehost\n"), 0o644))
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("REDIS_ADDR", "envredis:6379")

	cfg, err := Load(path)

	assert.NoError(t, err)
	assert.Equal(t, "envhost", cfg.Database.Host)
	assert.Equal(t, "envredis:6379", cfg.Redis.Addr)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	assert.NoError(t, os.WriteFile(path, []byte("scheduler:\n  poll_interval: soon\n"), 0o644))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveParallelism(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	assert.NoError(t, os.WriteFile(path, []byte("scheduler:\n  max_parallel_tasks: -1\n"), 0o644))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestConnectionString_ExplicitEnvWins(t *testing.T) {
	t.Setenv("DB_CONN_STR", "postgres://u:p@db/ledger")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

	assert.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/ledger", cfg.ConnectionString())
}
