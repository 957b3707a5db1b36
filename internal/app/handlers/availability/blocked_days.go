package availability

import (
	"context"

	"peerrent/internal/app/dto"
	"peerrent/internal/app/handlers/support"
	"peerrent/internal/app/queries"
	"peerrent/internal/app/uow"
)

const blockedDaysKey = "availability.blocked_days"

type BlockedDaysQuery struct {
	ItemID string `validate:"required"`
}

func (q BlockedDaysQuery) Key() string { return blockedDaysKey }

// BlockedDaysHandler lists every day held by a paid or later reservation of the item.
type BlockedDaysHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *BlockedDaysHandler) Handle(ctx context.Context, q BlockedDaysQuery) (dto.BlockedDays, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BlockedDays{}, err
	}
	defer support.Release(cleanup)

	idx, err := unit.Availability().Index(execCtx, q.ItemID)
	if err != nil {
		return dto.BlockedDays{}, err
	}
	out := dto.MapBlockedDays(idx)
	out.ItemID = q.ItemID
	return out, nil
}

var _ queries.Handler[BlockedDaysQuery, dto.BlockedDays] = (*BlockedDaysHandler)(nil)
