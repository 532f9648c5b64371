package db

import (
	"context"
	"errors"
	"time"

	"github.com/cancelready/backend/internal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// InsertCancellation appends a cancellation record to the audit trail and
// returns its id. The id and time are assigned here when missing. Records are
// never updated nor deleted.
func (ms *MongoStorage) InsertCancellation(record *CancellationRecord) (internal.ObjectID, error) {
	if record == nil || record.VendorKey == "" || record.Status == "" {
		return internal.NilObjectID, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if record.ID.IsZero() {
		record.ID = internal.NewObjectID()
	}
	if record.Time.IsZero() {
		record.Time = time.Now().UTC()
	}
	if _, err := ms.cancellations.InsertOne(ctx, record); err != nil {
		return internal.NilObjectID, err
	}
	return record.ID, nil
}

// Cancellation returns the record with the id provided. If it doesn't exist,
// it returns ErrNotFound.
func (ms *MongoStorage) Cancellation(id internal.ObjectID) (*CancellationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	record := &CancellationRecord{}
	if err := ms.cancellations.FindOne(ctx, bson.M{"_id": id}).Decode(record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// CancellationsByVendor returns the records of the vendor, newest first. A
// limit of zero or less returns every record.
func (ms *MongoStorage) CancellationsByVendor(vendorKey string, limit int64) ([]CancellationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := ms.cancellations.Find(ctx, bson.M{"vendorKey": vendorKey}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()
	records := []CancellationRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
