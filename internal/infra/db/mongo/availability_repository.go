package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"peerrent/internal/app/uow"
	"peerrent/internal/domain/availability"
	"peerrent/internal/domain/shared/daterange"
)

const availabilityCollection = "agg_availability"

// AvailabilityRepository keeps one document per item. Claims on the same item race on the
// document version, which makes the document the per-item serialisation point across instances.
type AvailabilityRepository struct {
	col *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{col: db.Collection(availabilityCollection)}
}

func (r *AvailabilityRepository) Index(ctx context.Context, itemID string) (*availability.Index, error) {
	var doc availabilityDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": itemID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return availability.NewIndex(itemID), nil
		}
		return nil, err
	}
	return doc.toIndex()
}

func (r *AvailabilityRepository) Save(ctx context.Context, idx *availability.Index) error {
	doc := newAvailabilityDocument(idx)
	filter := bson.M{"_id": doc.ItemID, "version": idx.Version}
	doc.Version = idx.Version + 1
	result, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return storageErr(err)
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return uow.ErrStorageConflict
	}
	idx.Version = doc.Version
	return nil
}

type availabilityDocument struct {
	ItemID  string            `bson:"_id"`
	Owners  map[string]string `bson:"owners"`
	Version int64             `bson:"version"`
}

func newAvailabilityDocument(idx *availability.Index) availabilityDocument {
	owners := make(map[string]string, len(idx.Owners))
	for day, id := range idx.Owners {
		owners[day.String()] = id
	}
	return availabilityDocument{ItemID: idx.ItemID, Owners: owners, Version: idx.Version}
}

func (d availabilityDocument) toIndex() (*availability.Index, error) {
	idx := availability.NewIndex(d.ItemID)
	for key, id := range d.Owners {
		day, err := daterange.ParseDay(key)
		if err != nil {
			return nil, err
		}
		idx.Owners[day] = id
	}
	idx.Version = d.Version
	return idx, nil
}
