package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicegate-server-go/internal/platform/storage"
)

func TestSQLiteStore(t *testing.T) {
	db, err := storage.OpenTestDB()
	require.NoError(t, err)

	repo, err := NewSQLite(db)
	require.NoError(t, err)

	runStoreSuite(t, repo)
}

func TestSQLiteStorePersistsSignature(t *testing.T) {
	db, err := storage.OpenTestDB()
	require.NoError(t, err)

	repo, err := NewSQLite(db)
	require.NoError(t, err)

	ctx := context.Background()
	binding := newTrustedBinding(t, "alice", "phone-1")
	require.NoError(t, repo.Create(ctx, binding))

	found, err := repo.Find(ctx, "alice", "phone-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, binding.Signature, found.Signature)
	assert.WithinDuration(t, binding.BoundAt, found.BoundAt, time.Second)
}
