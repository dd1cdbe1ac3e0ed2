package core

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"globalassist.com/backend/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRecordStore(t *testing.T) *store.RecordStore {
	t.Helper()
	backend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return store.NewRecordStore(backend, discardLogger())
}

func newTestUsers(t *testing.T, rs *store.RecordStore) *UserDirectory {
	t.Helper()
	return NewUserDirectory(rs, bcrypt.MinCost, discardLogger())
}

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// setTier changes a user's subscription tier directly in the collection.
func setTier(t *testing.T, rs *store.RecordStore, userID int64, tier string) {
	t.Helper()
	users := store.NewCollection[store.User](rs, store.CollectionUsers)
	require.NoError(t, users.Update(func(records []store.User) ([]store.User, error) {
		for i := range records {
			if records[i].ID == userID {
				records[i].SubscriptionTier = tier
			}
		}
		return records, nil
	}))
}
