package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 環境変数をクリア
	envVars := []string{
		"PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"STATS_URL", "STATS_TIMEOUT", "STATS_BUFFER_SIZE",
		"LOCK_TTL", "LOCK_MAX_RETRIES", "LOCK_RETRY_INTERVAL",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}

	cfg := Load()

	// Server defaults
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Database defaults
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "postgres", cfg.Database.Password)
	assert.Equal(t, "event_admission", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	// Redis defaults
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "6379", cfg.Redis.Port)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	// Stats defaults
	assert.Equal(t, "http://localhost:9090", cfg.Stats.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Stats.Timeout)
	assert.Equal(t, 1024, cfg.Stats.BufferSize)

	// Lock defaults
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 3, cfg.Lock.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Lock.RetryInterval)
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("SERVER_READ_TIMEOUT", "60s")
	os.Setenv("DB_HOST", "db.example.com")
	os.Setenv("DB_NAME", "testdb")
	os.Setenv("REDIS_HOST", "redis.example.com")
	os.Setenv("REDIS_DB", "1")
	os.Setenv("STATS_URL", "http://stats.example.com")
	os.Setenv("LOCK_TTL", "5s")
	os.Setenv("LOCK_MAX_RETRIES", "10")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("SERVER_READ_TIMEOUT")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_NAME")
		os.Unsetenv("REDIS_HOST")
		os.Unsetenv("REDIS_DB")
		os.Unsetenv("STATS_URL")
		os.Unsetenv("LOCK_TTL")
		os.Unsetenv("LOCK_MAX_RETRIES")
	}()

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, "testdb", cfg.Database.DBName)
	assert.Equal(t, "redis.example.com", cfg.Redis.Host)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "http://stats.example.com", cfg.Stats.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 10, cfg.Lock.MaxRetries)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "secret",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()

	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "user=postgres")
	assert.Contains(t, dsn, "password=secret")
	assert.Contains(t, dsn, "dbname=testdb")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := &RedisConfig{Host: "localhost", Port: "6379"}
	assert.Equal(t, "localhost:6379", cfg.Addr())
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_ENV_VAR", "custom_value")
	defer os.Unsetenv("TEST_ENV_VAR")

	assert.Equal(t, "custom_value", getEnv("TEST_ENV_VAR", "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT_VAR", "default"))
}

func TestGetIntEnv(t *testing.T) {
	os.Setenv("TEST_INT", "42")
	defer os.Unsetenv("TEST_INT")
	assert.Equal(t, 42, getIntEnv("TEST_INT", 0))

	os.Setenv("TEST_INVALID_INT", "not_a_number")
	defer os.Unsetenv("TEST_INVALID_INT")
	assert.Equal(t, 99, getIntEnv("TEST_INVALID_INT", 99))

	assert.Equal(t, 100, getIntEnv("NON_EXISTENT_INT", 100))
}

func TestGetDurationEnv(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")
	assert.Equal(t, 45*time.Second, getDurationEnv("TEST_DURATION", time.Second))

	os.Setenv("TEST_INVALID_DURATION", "not_a_duration")
	defer os.Unsetenv("TEST_INVALID_DURATION")
	assert.Equal(t, time.Minute, getDurationEnv("TEST_INVALID_DURATION", time.Minute))
}
