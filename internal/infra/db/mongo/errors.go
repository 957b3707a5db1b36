package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"peerrent/internal/app/uow"
)

const (
	writeConflictCode = 112
	transientTxnLabel = "TransientTransactionError"
)

// storageErr maps version races and transaction write conflicts onto uow.ErrStorageConflict.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(uow.ErrStorageConflict, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(writeConflictCode) || se.HasErrorLabel(transientTxnLabel)) {
		return errors.Join(uow.ErrStorageConflict, err)
	}
	return err
}

func bsonD(keys ...string) bson.D {
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: 1})
	}
	return out
}
