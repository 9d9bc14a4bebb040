package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *PostgresConfig {
	cfg := DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if user := os.Getenv("TEST_POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}
	return cfg
}

func requireDatabase(t *testing.T) *PostgresDB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
	db, err := NewPostgres(context.Background(), testConfig())
	require.NoError(t, err, "failed to connect to postgres")
	t.Cleanup(db.Close)
	return db
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(5), cfg.MinConns)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "forms",
		Password: "secret",
		Database: "eventos",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=forms password=secret dbname=eventos sslmode=disable",
		cfg.DSN())
}

func TestNewPostgres_Unreachable(t *testing.T) {
	cfg := &PostgresConfig{
		Host:           "invalid-host-that-does-not-exist",
		Port:           9999,
		User:           "invalid",
		Password:       "invalid",
		Database:       "invalid",
		SSLMode:        "disable",
		MaxRetries:     0,
		RetryInterval:  100 * time.Millisecond,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewPostgres(ctx, cfg)
	assert.Error(t, err)
}

func TestPostgres_Integration(t *testing.T) {
	db := requireDatabase(t)
	ctx := context.Background()

	assert.NoError(t, db.Ping(ctx))
	assert.True(t, db.IsConnected(ctx))
	assert.NotNil(t, db.Pool())
	assert.NotNil(t, db.Stats())
	assert.NoError(t, db.HealthCheck(ctx))
}

func TestPostgres_ExecAndQuery_Integration(t *testing.T) {
	db := requireDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(ctx,
		"CREATE TEMP TABLE scratch_registrations (id SERIAL PRIMARY KEY, payment_status TEXT)"))
	require.NoError(t, db.Exec(ctx,
		"INSERT INTO scratch_registrations (payment_status) VALUES ($1)", "approved"))

	var status string
	err := db.QueryRow(ctx,
		"SELECT payment_status FROM scratch_registrations WHERE payment_status = $1",
		"approved").Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "approved", status)
}

func TestPostgres_Transaction_Integration(t *testing.T) {
	db := requireDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(ctx,
		"CREATE TEMP TABLE scratch_tx (id SERIAL PRIMARY KEY, value INT)"))

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.Exec(ctx, "INSERT INTO scratch_tx (value) VALUES ($1)", 100)
	if err != nil {
		_ = tx.Rollback(ctx)
		t.Fatalf("insert in tx failed: %v", err)
	}
	require.NoError(t, tx.Commit(ctx))

	var value int
	require.NoError(t, db.QueryRow(ctx,
		"SELECT value FROM scratch_tx WHERE value = $1", 100).Scan(&value))
	assert.Equal(t, 100, value)
}
