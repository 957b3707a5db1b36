package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	appoutbox "peerrent/internal/app/outbox"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/availability"
	"peerrent/internal/domain/reservation"
)

var (
	ErrReadOnlyUnit = errors.New("memory: write attempted in read-only unit")
	ErrUnitClosed   = errors.New("memory: unit of work already finished")
)

// Store keeps committed state. Units stage their writes and apply them on Commit after checking
// that every record they touched still carries the version they read.
type Store struct {
	mu           sync.RWMutex
	reservations map[reservation.ID]*reservation.Reservation
	indexes      map[string]*availability.Index
	outbox       []*outboxEntry
}

func NewStore() *Store {
	return &Store{
		reservations: make(map[reservation.ID]*reservation.Reservation),
		indexes:      make(map[string]*availability.Index),
	}
}

// Factory adapts Store to uow.UoWFactory.
type Factory struct {
	Store *Store
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		saved:    make(map[reservation.ID]stagedReservation),
		deleted:  make(map[reservation.ID]int64),
		indexes:  make(map[string]stagedIndex),
	}, nil
}

type stagedReservation struct {
	base  int64
	value *reservation.Reservation
}

type stagedIndex struct {
	base  int64
	value *availability.Index
}

// Unit is a uow.UnitOfWork with snapshot-free reads and optimistic commit.
type Unit struct {
	store    *Store
	readOnly bool
	closed   bool

	saved   map[reservation.ID]stagedReservation
	deleted map[reservation.ID]int64
	indexes map[string]stagedIndex
	records []appoutbox.EventRecord
}

func (u *Unit) Reservations() reservation.Repository {
	return reservationRepo{u: u}
}

func (u *Unit) Availability() availability.Repository {
	return availabilityRepo{u: u}
}

type unitKey struct{}

// InjectContext lets the outbox find the unit it should stage records in.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitKey{}, u)
}

func unitFrom(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*Unit)
	return u, ok && u != nil && !u.closed
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range u.saved {
		if current := s.reservationVersion(id); current != st.base {
			return uow.ErrStorageConflict
		}
	}
	for id, base := range u.deleted {
		if current := s.reservationVersion(id); current != base {
			return uow.ErrStorageConflict
		}
	}
	for itemID, st := range u.indexes {
		var current int64
		if idx, ok := s.indexes[itemID]; ok {
			current = idx.Version
		}
		if current != st.base {
			return uow.ErrStorageConflict
		}
	}

	for id, st := range u.saved {
		s.reservations[id] = st.value
	}
	for id := range u.deleted {
		delete(s.reservations, id)
	}
	for itemID, st := range u.indexes {
		s.indexes[itemID] = st.value
	}
	for _, rec := range u.records {
		s.outbox = append(s.outbox, newOutboxEntry(rec))
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.closed = true
	u.saved, u.deleted, u.indexes, u.records = nil, nil, nil, nil
	return nil
}

func (u *Unit) writable() error {
	switch {
	case u.closed:
		return ErrUnitClosed
	case u.readOnly:
		return ErrReadOnlyUnit
	}
	return nil
}

func (s *Store) reservationVersion(id reservation.ID) int64 {
	if r, ok := s.reservations[id]; ok {
		return r.Version
	}
	return 0
}

type reservationRepo struct {
	u *Unit
}

func (r reservationRepo) ByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	u := r.u
	if u.closed {
		return nil, ErrUnitClosed
	}
	if _, gone := u.deleted[id]; gone {
		return nil, reservation.ErrNotFound
	}
	if st, ok := u.saved[id]; ok {
		return st.value.Clone(), nil
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	stored, ok := u.store.reservations[id]
	if !ok {
		return nil, reservation.ErrNotFound
	}
	return stored.Clone(), nil
}

func (r reservationRepo) Save(ctx context.Context, res *reservation.Reservation) error {
	u := r.u
	if err := u.writable(); err != nil {
		return err
	}
	base := res.Version
	if prev, ok := u.saved[res.ID]; ok {
		if res.Version != prev.value.Version {
			return uow.ErrStorageConflict
		}
		base = prev.base
	}
	res.Version++
	u.saved[res.ID] = stagedReservation{base: base, value: res.Clone()}
	delete(u.deleted, res.ID)
	return nil
}

func (r reservationRepo) Delete(ctx context.Context, res *reservation.Reservation) error {
	u := r.u
	if err := u.writable(); err != nil {
		return err
	}
	base := res.Version
	if prev, ok := u.saved[res.ID]; ok {
		base = prev.base
		delete(u.saved, res.ID)
	}
	u.deleted[res.ID] = base
	return nil
}

func (r reservationRepo) ListByItem(ctx context.Context, itemID string) ([]*reservation.Reservation, error) {
	u := r.u
	if u.closed {
		return nil, ErrUnitClosed
	}
	merged := make(map[reservation.ID]*reservation.Reservation)
	u.store.mu.RLock()
	for id, res := range u.store.reservations {
		if res.ItemID == itemID {
			merged[id] = res.Clone()
		}
	}
	u.store.mu.RUnlock()
	for id, st := range u.saved {
		if st.value.ItemID == itemID {
			merged[id] = st.value.Clone()
		}
	}
	for id := range u.deleted {
		delete(merged, id)
	}
	out := make([]*reservation.Reservation, 0, len(merged))
	for _, res := range merged {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Start != out[j].Range.Start {
			return out[i].Range.Start < out[j].Range.Start
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type availabilityRepo struct {
	u *Unit
}

func (r availabilityRepo) Index(ctx context.Context, itemID string) (*availability.Index, error) {
	u := r.u
	if u.closed {
		return nil, ErrUnitClosed
	}
	if st, ok := u.indexes[itemID]; ok {
		return st.value.Clone(), nil
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	if idx, ok := u.store.indexes[itemID]; ok {
		return idx.Clone(), nil
	}
	return availability.NewIndex(itemID), nil
}

func (r availabilityRepo) Save(ctx context.Context, index *availability.Index) error {
	u := r.u
	if err := u.writable(); err != nil {
		return err
	}
	base := index.Version
	if prev, ok := u.indexes[index.ItemID]; ok {
		if index.Version != prev.value.Version {
			return uow.ErrStorageConflict
		}
		base = prev.base
	}
	index.Version++
	u.indexes[index.ItemID] = stagedIndex{base: base, value: index.Clone()}
	return nil
}

var (
	_ uow.UoWFactory   = Factory{}
	_ uow.UnitOfWork   = (*Unit)(nil)
	_ appoutbox.Outbox = (*Store)(nil)
)
