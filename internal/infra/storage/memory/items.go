package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"peerrent/internal/app/policies"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/money"
)

// ItemFixture is the file format for seeded items.
type ItemFixture struct {
	ID            string `json:"id" yaml:"id"`
	OwnerUID      string `json:"owner_uid" yaml:"owner_uid"`
	MinRentalDays int    `json:"min_rental_days" yaml:"min_rental_days"`
	DailyRate     int64  `json:"daily_rate" yaml:"daily_rate"`
	IsFree        bool   `json:"is_free" yaml:"is_free"`
}

// Items is an in-memory ItemCatalog.
type Items struct {
	mu    sync.RWMutex
	items map[string]reservation.Item
}

func NewItems(items ...reservation.Item) *Items {
	c := &Items{items: make(map[string]reservation.Item, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *Items) Item(ctx context.Context, itemID string) (reservation.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[itemID]
	if !ok {
		return reservation.Item{}, fmt.Errorf("%w: %s", policies.ErrItemNotFound, itemID)
	}
	return it, nil
}

func (c *Items) Put(item reservation.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

func (c *Items) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// LoadItems reads fixtures from a .json, .yaml or .yml file.
func LoadItems(path string) ([]reservation.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []ItemFixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &fixtures)
	default:
		err = json.Unmarshal(raw, &fixtures)
	}
	if err != nil {
		return nil, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	items := make([]reservation.Item, 0, len(fixtures))
	for _, f := range fixtures {
		rate, err := money.New(f.DailyRate)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", f.ID, err)
		}
		if f.ID == "" || f.OwnerUID == "" {
			return nil, fmt.Errorf("fixture %q: id and owner_uid are required", f.ID)
		}
		if f.MinRentalDays < 1 {
			f.MinRentalDays = 1
		}
		items = append(items, reservation.Item{
			ID:            f.ID,
			OwnerUID:      f.OwnerUID,
			MinRentalDays: f.MinRentalDays,
			DailyRate:     rate,
			IsFree:        f.IsFree,
		})
	}
	return items, nil
}

var _ policies.ItemCatalog = (*Items)(nil)
