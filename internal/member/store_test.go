package member

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/membergate/core/database"
	"github.com/m3rciful/membergate/migrations"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "members.db")}
	require.NoError(t, coredatabase.RunMigrations(cfg, migrations.FS))
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(db, Options{Country: "BD", Now: clock.Now})
}

func TestUpsertCreatesWithDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, Profile{ID: 1001, FirstName: "Ada", LastName: "L", Username: "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), rec.ID)
	assert.Equal(t, "Ada L", rec.Name)
	assert.Equal(t, "ada", rec.Username)
	assert.Equal(t, "BD", rec.Country)
	assert.Equal(t, StatusUnverified, rec.Status)
	assert.False(t, rec.Approved())
	assert.Equal(t, "0", rec.TotalAllocation)
	assert.Equal(t, "0", rec.TotalInvestment)
	assert.Equal(t, "0", rec.TotalPayout)
	assert.Equal(t, WalletUnset, rec.Wallet)
}

func TestUpsertPreservesJoinTimeAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, Profile{ID: 7, FirstName: "Old"})
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, 7, StatusApproved))

	second, err := s.Upsert(ctx, Profile{ID: 7, FirstName: "New", Username: "newname"})
	require.NoError(t, err)
	assert.Equal(t, "New", second.Name)
	assert.Equal(t, "newname", second.Username)
	assert.True(t, first.JoinedAt.Equal(second.JoinedAt), "joined_at changed: %s -> %s", first.JoinedAt, second.JoinedAt)
	assert.Equal(t, StatusApproved, second.Status)

	// same inputs again are a no-op apart from updated_at
	third, err := s.Upsert(ctx, Profile{ID: 7, FirstName: "New", Username: "newname"})
	require.NoError(t, err)
	assert.Equal(t, second.Name, third.Name)
	assert.Equal(t, second.Status, third.Status)
	assert.True(t, second.JoinedAt.Equal(third.JoinedAt))
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetFieldAllowList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, Profile{ID: 5, FirstName: "F"})
	require.NoError(t, err)

	_, err = ParseField("name; DROP TABLE members")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.ErrorIs(t, s.SetField(ctx, 5, Field(42), "x"), ErrUnknownField)

	rec, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "F", rec.Name)

	require.NoError(t, s.SetField(ctx, 5, FieldTotalInvestment, "1,250 USDT"))
	require.NoError(t, s.SetField(ctx, 5, FieldWallet, "0xabc"))
	require.NoError(t, s.SetField(ctx, 5, FieldTotalAllocation, "not-a-number"))
	require.NoError(t, s.SetField(ctx, 5, FieldTotalPayout, "12.5"))

	rec, err = s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "1,250 USDT", rec.TotalInvestment)
	assert.Equal(t, "0xabc", rec.Wallet)
	assert.Equal(t, "not-a-number", rec.TotalAllocation)
	assert.Equal(t, "12.5", rec.TotalPayout)
}

func TestSetFieldApproval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, Profile{ID: 9, FirstName: "A"})
	require.NoError(t, err)

	require.NoError(t, s.SetField(ctx, 9, FieldApproval, "yes"))
	rec, err := s.Get(ctx, 9)
	require.NoError(t, err)
	assert.True(t, rec.Approved())

	require.NoError(t, s.SetField(ctx, 9, FieldApproval, "0"))
	rec, err = s.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rec.Status)

	assert.ErrorIs(t, s.SetField(ctx, 9, FieldApproval, "maybe"), ErrInvalidValue)
	assert.ErrorIs(t, s.SetField(ctx, 404, FieldWallet, "0x1"), ErrNotFound)
}

func TestAdvanceOnlyFromListedStatuses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, Profile{ID: 5, FirstName: "A"})
	require.NoError(t, err)

	moved, err := s.Advance(ctx, 5, StatusAwaitingReview, StatusUnverified, StatusRejected)
	require.NoError(t, err)
	assert.True(t, moved)

	require.NoError(t, s.SetStatus(ctx, 5, StatusApproved))
	moved, err = s.Advance(ctx, 5, StatusAwaitingReview, StatusUnverified, StatusRejected)
	require.NoError(t, err)
	assert.False(t, moved)
	rec, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, rec.Status)

	_, err = s.Advance(ctx, 404, StatusAwaitingReview, StatusUnverified)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Advance(ctx, 5, Status("bogus"), StatusApproved)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestListingsAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	_, ok := stats.ApprovalRate()
	assert.False(t, ok)

	for _, id := range []int64{1, 2, 3, 4} {
		_, err := s.Upsert(ctx, Profile{ID: id, FirstName: "U"})
		require.NoError(t, err)
	}
	require.NoError(t, s.SetStatus(ctx, 2, StatusApproved))
	require.NoError(t, s.SetStatus(ctx, 4, StatusApproved))
	require.NoError(t, s.SetStatus(ctx, 3, StatusRejected))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(4), all[0].ID, "newest first")
	assert.Equal(t, int64(1), all[3].ID)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	var pendingIDs []int64
	for _, r := range pending {
		pendingIDs = append(pendingIDs, r.ID)
	}
	assert.Equal(t, []int64{3, 1}, pendingIDs)

	ids, err := s.ApprovedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, ids)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, Approved: 2, Pending: 2}, stats)
	assert.Equal(t, stats.Total, stats.Approved+stats.Pending)
	rate, ok := stats.ApprovalRate()
	assert.True(t, ok)
	assert.InDelta(t, 50.0, rate, 0.001)
}

func TestStorageErrorWrapsDriverError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.db.Close())

	_, err := s.Get(context.Background(), 1)
	var storage *StorageError
	require.True(t, errors.As(err, &storage), "got %v", err)
	assert.Equal(t, "get", storage.Op)
	assert.Equal(t, "storage_error", storage.Code())
}

func TestParseFieldRoundTrip(t *testing.T) {
	for _, f := range Fields() {
		parsed, err := ParseField(f.Key())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
		assert.NotEmpty(t, f.Label())
	}
}
