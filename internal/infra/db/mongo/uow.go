package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"peerrent/internal/app/uow"
	"peerrent/internal/domain/availability"
	"peerrent/internal/domain/reservation"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface. Writes go through a
// snapshot transaction with majority write concern so the reservation, the availability document
// and the outbox rows commit together.
type Factory struct {
	DB *mongo.Database

	Reservations *ReservationRepository
	Availability *AvailabilityRepository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		Reservations: NewReservationRepository(db),
		Availability: NewAvailabilityRepository(db),
	}
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.Reservations == nil || f.Availability == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:      session,
		readOnly:     opts.ReadOnly,
		reservations: f.Reservations,
		availability: f.Availability,
	}, nil
}

type Unit struct {
	session  mongo.Session
	readOnly bool

	reservations *ReservationRepository
	availability *AvailabilityRepository
}

func (u *Unit) Reservations() reservation.Repository {
	return u.reservations
}

func (u *Unit) Availability() availability.Repository {
	return u.availability
}

// Commit of a read-only unit just closes the snapshot.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return u.session.AbortTransaction(ctx)
	}
	return storageErr(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	err := u.session.AbortTransaction(ctx)
	if errors.Is(err, mongo.ErrAbortAfterCommitTransaction) {
		return nil
	}
	return err
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
