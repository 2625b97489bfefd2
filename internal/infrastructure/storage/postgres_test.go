package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live database only when TEST_DATABASE_URL is set.
func TestPostgresStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, config.StorageConfig{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer store.Close()

	run := sampleRun(time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, got.FinalBalance.Equal(run.FinalBalance))
	assert.Len(t, got.Trades, 1)
	assert.Len(t, got.Equity, 2)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	store, err := storage.Open(context.Background(), config.StorageConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}
