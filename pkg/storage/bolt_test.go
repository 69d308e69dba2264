package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltDB_FilePathOption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuer.db")
	db, err := NewStorage(Bolt, Option{ID: BoltDBFilePathOption, Option: path})
	require.NoError(t, err)
	assert.Equal(t, path, db.URI())

	require.NoError(t, db.Write(context.Background(), "issuer", "id-1", []byte("record")))
	require.NoError(t, db.Close())

	// data survives reopening the file
	reopened, err := NewStorage(Bolt, Option{ID: BoltDBFilePathOption, Option: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	v, err := reopened.Read(context.Background(), "issuer", "id-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("record"), v)

	_, err = NewStorage(Bolt, Option{ID: BoltDBFilePathOption, Option: 42})
	assert.ErrorContains(t, err, "must be a non-empty string")
}
