package policies

import (
	"context"
	"errors"

	"peerrent/internal/domain/reservation"
)

var ErrItemNotFound = errors.New("catalog: item not found")

// ItemCatalog reads the externally owned item records.
type ItemCatalog interface {
	Item(ctx context.Context, itemID string) (reservation.Item, error)
}
