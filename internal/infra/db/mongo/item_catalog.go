package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"peerrent/internal/app/policies"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/money"
)

// ItemCatalog reads the item projection maintained by the listing side.
type ItemCatalog struct {
	col *mongo.Collection
}

func NewItemCatalog(db *mongo.Database) *ItemCatalog {
	return &ItemCatalog{col: db.Collection("items")}
}

func (c *ItemCatalog) Item(ctx context.Context, itemID string) (reservation.Item, error) {
	var doc itemDocument
	if err := c.col.FindOne(ctx, bson.M{"_id": itemID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return reservation.Item{}, fmt.Errorf("%w: %s", policies.ErrItemNotFound, itemID)
		}
		return reservation.Item{}, err
	}
	rate, err := money.New(doc.DailyRate)
	if err != nil {
		return reservation.Item{}, err
	}
	return reservation.Item{
		ID:            doc.ID,
		OwnerUID:      doc.OwnerUID,
		MinRentalDays: doc.MinRentalDays,
		DailyRate:     rate,
		IsFree:        doc.IsFree,
	}, nil
}

// Upsert stores the item, used to seed fixtures.
func (c *ItemCatalog) Upsert(ctx context.Context, item reservation.Item) error {
	doc := itemDocument{
		ID:            item.ID,
		OwnerUID:      item.OwnerUID,
		MinRentalDays: item.MinRentalDays,
		DailyRate:     item.DailyRate.Minor(),
		IsFree:        item.IsFree,
	}
	_, err := c.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

type itemDocument struct {
	ID            string `bson:"_id"`
	OwnerUID      string `bson:"owner_uid"`
	MinRentalDays int    `bson:"min_rental_days"`
	DailyRate     int64  `bson:"daily_rate"`
	IsFree        bool   `bson:"is_free"`
}
