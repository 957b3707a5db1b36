package reservations

import (
	"context"
	"fmt"
	"time"

	"peerrent/internal/app/dto"
	"peerrent/internal/app/handlers/support"
	"peerrent/internal/app/outcome"
	"peerrent/internal/app/queries"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/clock"
)

const (
	getKey         = "reservation.get"
	permissionsKey = "reservation.permissions"
	listByItemKey  = "reservation.list_by_item"
)

// GetQuery loads one reservation. When ViewerUID is a party to it, the viewer's permissions are
// attached.
type GetQuery struct {
	ReservationID string `validate:"required"`
	ViewerUID     string
	At            time.Time
}

func (q GetQuery) Key() string { return getKey }

type PermissionsQuery struct {
	ReservationID string `validate:"required"`
	Role          string `validate:"required,oneof=owner renter"`
	At            time.Time
}

func (q PermissionsQuery) Key() string { return permissionsKey }

type ListByItemQuery struct {
	ItemID string `validate:"required"`
}

func (q ListByItemQuery) Key() string { return listByItemKey }

type QueryHandlers struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
}

func (h *QueryHandlers) Get(ctx context.Context, q GetQuery) (dto.Reservation, error) {
	r, err := h.load(ctx, q.ReservationID)
	if err != nil {
		return dto.Reservation{}, err
	}
	out := dto.MapReservation(r)
	if role, ok := roleOf(r, q.ViewerUID); ok {
		out.Permissions = reservation.Permissions(r, clock.NowOr(h.Clock, q.At), role)
	}
	return out, nil
}

func (h *QueryHandlers) Permissions(ctx context.Context, q PermissionsQuery) (dto.Permissions, error) {
	role := reservation.Role(q.Role)
	if role != reservation.RoleOwner && role != reservation.RoleRenter {
		return dto.Permissions{}, fmt.Errorf("%w: role %q", outcome.ErrInvalidInput, q.Role)
	}
	r, err := h.load(ctx, q.ReservationID)
	if err != nil {
		return dto.Permissions{}, err
	}
	now := clock.NowOr(h.Clock, q.At)
	return dto.Permissions{
		ReservationID: string(r.ID),
		Role:          string(role),
		At:            now,
		Allowed:       reservation.Permissions(r, now, role),
	}, nil
}

func (h *QueryHandlers) ListByItem(ctx context.Context, q ListByItemQuery) ([]dto.Reservation, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer support.Release(cleanup)
	list, err := unit.Reservations().ListByItem(execCtx, q.ItemID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.Reservation, 0, len(list))
	for _, r := range list {
		out = append(out, dto.MapReservation(r))
	}
	return out, nil
}

func (h *QueryHandlers) load(ctx context.Context, id string) (*reservation.Reservation, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer support.Release(cleanup)
	return unit.Reservations().ByID(execCtx, reservation.ID(id))
}

func roleOf(r *reservation.Reservation, uid string) (reservation.Role, bool) {
	switch {
	case uid == "":
		return "", false
	case uid == r.ItemOwnerUID:
		return reservation.RoleOwner, true
	case uid == r.RenterUID:
		return reservation.RoleRenter, true
	}
	return "", false
}

var (
	_ queries.HandlerFunc[GetQuery, dto.Reservation]          = (*QueryHandlers)(nil).Get
	_ queries.HandlerFunc[PermissionsQuery, dto.Permissions]  = (*QueryHandlers)(nil).Permissions
	_ queries.HandlerFunc[ListByItemQuery, []dto.Reservation] = (*QueryHandlers)(nil).ListByItem
)
