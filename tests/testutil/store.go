package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/mailclient/internal/store"
)

// NewTestStore opens an in-memory mail store and registers users as
// accounts, so messages between them can be delivered. The store is closed
// when the test completes.
func NewTestStore(t *testing.T, users ...string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "opening mail store")

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing mail store: %v", err)
		}
	})

	ctx := context.Background()
	for _, u := range users {
		require.NoError(t, s.CreateUser(ctx, u), "registering %s", u)
	}

	return s
}
