package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"peerrent/internal/app/uow"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/money"
)

const reservationsCollection = "agg_reservation"

type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	return &ReservationRepository{col: db.Collection(reservationsCollection)}
}

func (r *ReservationRepository) ByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

// Save upserts on (_id, version). A stale version either matches nothing or collides with the
// stored _id; both surface as uow.ErrStorageConflict.
func (r *ReservationRepository) Save(ctx context.Context, res *reservation.Reservation) error {
	doc := newReservationDocument(res)
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	result, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return storageErr(err)
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return uow.ErrStorageConflict
	}
	res.Version = doc.Version
	return nil
}

func (r *ReservationRepository) Delete(ctx context.Context, res *reservation.Reservation) error {
	result, err := r.col.DeleteOne(ctx, bson.M{"_id": string(res.ID), "version": res.Version})
	if err != nil {
		return storageErr(err)
	}
	if result.DeletedCount == 0 {
		return uow.ErrStorageConflict
	}
	return nil
}

func (r *ReservationRepository) ListByItem(ctx context.Context, itemID string) ([]*reservation.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"item_id": itemID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*reservation.Reservation
	for cur.Next(ctx) {
		var doc reservationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		agg, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, cur.Err()
}

type reservationDocument struct {
	ID            string              `bson:"_id"`
	ItemID        string              `bson:"item_id"`
	ItemOwnerUID  string              `bson:"item_owner_uid"`
	RenterUID     string              `bson:"renter_uid"`
	Start         string              `bson:"start"`
	End           string              `bson:"end"`
	Days          int                 `bson:"days"`
	MinRentalDays int                 `bson:"min_rental_days"`
	Total         int64               `bson:"total"`
	IsFree        bool                `bson:"is_free"`
	Status        string              `bson:"status"`
	PaidAt        *time.Time          `bson:"paid_at,omitempty"`
	PickedUpAt    *time.Time          `bson:"picked_up_at,omitempty"`
	ReturnedAt    *time.Time          `bson:"returned_at,omitempty"`
	PaidOutAt     *time.Time          `bson:"paid_out_at,omitempty"`
	CanceledAt    *time.Time          `bson:"canceled_at,omitempty"`
	RefundedAt    *time.Time          `bson:"refunded_at,omitempty"`
	ReviewsOpen   reviewsOpenDocument `bson:"reviews_open"`
	GatewayEvents []string            `bson:"gateway_events_applied"`
	CreatedAt     time.Time           `bson:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at"`
	Version       int64               `bson:"version"`
}

type reviewsOpenDocument struct {
	RenterCanReviewOwner bool `bson:"renter_can_review_owner"`
	RenterCanReviewItem  bool `bson:"renter_can_review_item"`
	OwnerCanReviewRenter bool `bson:"owner_can_review_renter"`
}

func newReservationDocument(r *reservation.Reservation) reservationDocument {
	return reservationDocument{
		ID:            string(r.ID),
		ItemID:        r.ItemID,
		ItemOwnerUID:  r.ItemOwnerUID,
		RenterUID:     r.RenterUID,
		Start:         r.Range.Start.String(),
		End:           r.Range.End.String(),
		Days:          r.Days,
		MinRentalDays: r.MinRentalDays,
		Total:         r.Total.Minor(),
		IsFree:        r.IsFree,
		Status:        string(r.Status),
		PaidAt:        r.PaidAt,
		PickedUpAt:    r.PickedUpAt,
		ReturnedAt:    r.ReturnedAt,
		PaidOutAt:     r.PaidOutAt,
		CanceledAt:    r.CanceledAt,
		RefundedAt:    r.RefundedAt,
		ReviewsOpen: reviewsOpenDocument{
			RenterCanReviewOwner: r.ReviewsOpen.RenterCanReviewOwner,
			RenterCanReviewItem:  r.ReviewsOpen.RenterCanReviewItem,
			OwnerCanReviewRenter: r.ReviewsOpen.OwnerCanReviewRenter,
		},
		GatewayEvents: append([]string{}, r.GatewayEventsApplied...),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}

func (d reservationDocument) toAggregate() (*reservation.Reservation, error) {
	rng, err := daterange.Parse(d.Start, d.End)
	if err != nil {
		return nil, err
	}
	status, err := reservation.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	total, err := money.New(d.Total)
	if err != nil {
		return nil, err
	}
	return &reservation.Reservation{
		ID:            reservation.ID(d.ID),
		ItemID:        d.ItemID,
		ItemOwnerUID:  d.ItemOwnerUID,
		RenterUID:     d.RenterUID,
		Range:         rng,
		Days:          d.Days,
		MinRentalDays: d.MinRentalDays,
		Total:         total,
		IsFree:        d.IsFree,
		Status:        status,
		PaidAt:        utc(d.PaidAt),
		PickedUpAt:    utc(d.PickedUpAt),
		ReturnedAt:    utc(d.ReturnedAt),
		PaidOutAt:     utc(d.PaidOutAt),
		CanceledAt:    utc(d.CanceledAt),
		RefundedAt:    utc(d.RefundedAt),
		ReviewsOpen: reservation.ReviewsOpen{
			RenterCanReviewOwner: d.ReviewsOpen.RenterCanReviewOwner,
			RenterCanReviewItem:  d.ReviewsOpen.RenterCanReviewItem,
			OwnerCanReviewRenter: d.ReviewsOpen.OwnerCanReviewRenter,
		},
		GatewayEventsApplied: d.GatewayEvents,
		CreatedAt:            d.CreatedAt.UTC(),
		UpdatedAt:            d.UpdatedAt.UTC(),
		Version:              d.Version,
	}, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
