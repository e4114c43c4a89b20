// Package storetest opens throwaway SQLite databases carrying the real schema.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"schoolevents/internal/store"
)

// MemoryDSN is a private in-memory SQLite database with foreign keys on.
const MemoryDSN = "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// NewDB returns a migrated in-memory database closed at the end of the test.
func NewDB(t testing.TB) *store.DB {
	t.Helper()
	db, err := store.NewDB(context.Background(), "sqlite", MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
