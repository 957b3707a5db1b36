package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerrent/internal/app/middleware"
	appoutbox "peerrent/internal/app/outbox"
	"peerrent/internal/app/policies"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/money"
	infraoutbox "peerrent/internal/infra/outbox"
)

func seed(t *testing.T, store *Store) *reservation.Reservation {
	t.Helper()
	r, err := reservation.New(reservation.CreateParams{
		ID:        "res-1",
		Item:      reservation.Item{ID: "item-1", OwnerUID: "owner", MinRentalDays: 1, DailyRate: money.Must(100)},
		RenterUID: "renter",
		Range:     daterange.MustParse("2025-06-10", "2025-06-12"),
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	ctx := context.Background()
	unit, err := Factory{Store: store}.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Reservations().Save(ctx, r))
	require.NoError(t, unit.Commit(ctx))
	return r
}

func TestCommitDetectsConcurrentUpdate(t *testing.T) {
	store := NewStore()
	seed(t, store)
	ctx := context.Background()
	f := Factory{Store: store}

	first, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	second, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)

	a, err := first.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	b, err := second.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)

	require.NoError(t, first.Reservations().Save(ctx, a))
	require.NoError(t, second.Reservations().Save(ctx, b))

	require.NoError(t, first.Commit(ctx))
	assert.ErrorIs(t, second.Commit(ctx), uow.ErrStorageConflict)

	check, err := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	got, err := check.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestRollbackDiscardsWritesAndOutbox(t *testing.T) {
	store := NewStore()
	seed(t, store)
	ctx := context.Background()

	unit, err := Factory{Store: store}.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	execCtx := uow.Inject(ctx, unit)
	r, err := unit.Reservations().ByID(execCtx, "res-1")
	require.NoError(t, err)
	require.NoError(t, unit.Reservations().Delete(execCtx, r))
	require.NoError(t, store.Add(execCtx, appoutbox.EventRecord{ID: "evt-1", Name: "reservation.removed"}))

	_, err = unit.Reservations().ByID(execCtx, "res-1")
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	require.NoError(t, unit.Rollback(execCtx))
	assert.Empty(t, store.Records())

	check, _ := Factory{Store: store}.Begin(ctx, uow.TxOptions{ReadOnly: true})
	_, err = check.Reservations().ByID(ctx, "res-1")
	assert.NoError(t, err)
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	store := NewStore()
	r := seed(t, store)
	unit, err := Factory{Store: store}.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	assert.ErrorIs(t, unit.Reservations().Save(context.Background(), r), ErrReadOnlyUnit)
}

func TestOutboxRelayLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "reservation.paid", Payload: []byte(`{}`)}))

	doc, err := store.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, infraoutbox.StateClaimed, doc.State)

	none, err := store.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, store.MarkFailed(ctx, doc.ID, time.Now().Add(-time.Second), "broker down"))
	again, err := store.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 1, again.Attempts)
	require.NoError(t, store.MarkSent(ctx, again.ID))

	done, err := store.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, done)
}

func TestIdempotencyStoreExpires(t *testing.T) {
	s := NewIdempotencyStore(time.Minute)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Command: "reservation.accept", OccurredAt: now}))
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLoadItems(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- id: drill
  owner_uid: owner-1
  min_rental_days: 2
  daily_rate: 1500
- id: ladder
  owner_uid: owner-2
  is_free: true
`), 0o600))
	items, err := LoadItems(yamlPath)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, money.Amount(1500), items[0].DailyRate)
	assert.Equal(t, 1, items[1].MinRentalDays)
	assert.True(t, items[1].IsFree)

	jsonPath := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"tent","owner_uid":"o","min_rental_days":3,"daily_rate":900}]`), 0o600))
	items, err = LoadItems(jsonPath)
	require.NoError(t, err)
	catalog := NewItems(items...)
	tent, err := catalog.Item(context.Background(), "tent")
	require.NoError(t, err)
	assert.Equal(t, 3, tent.MinRentalDays)

	_, err = catalog.Item(context.Background(), "missing")
	assert.ErrorIs(t, err, policies.ErrItemNotFound)
}
