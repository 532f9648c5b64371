package db

import (
	"context"
	"errors"
	"time"

	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/secrets"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// Vendor returns the vendor stored under the key provided. If the vendor
// doesn't exist, it returns ErrNotFound.
func (ms *MongoStorage) Vendor(vendorKey string) (*Vendor, error) {
	if vendorKey == "" {
		return nil, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	vendor := &Vendor{}
	if err := ms.vendors.FindOne(ctx, bson.M{"_id": vendorKey}).Decode(vendor); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return vendor, nil
}

// Vendors returns every vendor, sorted by creation date.
func (ms *MongoStorage) Vendors() ([]Vendor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := ms.vendors.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()
	vendors := []Vendor{}
	if err := cursor.All(ctx, &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

// SetVendor creates a new vendor. It fails with ErrAlreadyExists if the vendor
// key is already in use.
func (ms *MongoStorage) SetVendor(vendor *Vendor) error {
	if vendor == nil || vendor.VendorKey == "" {
		return ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	if vendor.CreatedAt.IsZero() {
		vendor.CreatedAt = now
	}
	vendor.UpdatedAt = now
	if _, err := ms.vendors.InsertOne(ctx, vendor); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// UpdateVendor updates the non-zero fields of the vendor provided. The legacy
// fields and the creation date are never touched.
func (ms *MongoStorage) UpdateVendor(vendor *Vendor) error {
	if vendor == nil || vendor.VendorKey == "" {
		return ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	vendor.UpdatedAt = time.Now()
	updateDoc, err := dynamicUpdateDocument(vendor, nil, []string{"createdAt"})
	if err != nil {
		return err
	}
	res, err := ms.vendors.UpdateOne(ctx, bson.M{"_id": vendor.VendorKey}, updateDoc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SealVendorCredential stores the sealed credential of the vendor in the
// canonical field and removes every legacy credential field. The processor is
// stored too when provided.
func (ms *MongoStorage) SealVendorCredential(vendorKey string, proc processor.Type, sealed *secrets.Sealed) error {
	if vendorKey == "" || sealed.IsZero() {
		return ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	set := bson.M{
		"credential": sealed,
		"updatedAt":  time.Now(),
	}
	if proc != "" {
		set["processor"] = proc
	}
	unset := bson.M{}
	for _, field := range LegacyCredentialFields {
		unset[field] = ""
	}
	res, err := ms.vendors.UpdateOne(ctx, bson.M{"_id": vendorKey}, bson.M{"$set": set, "$unset": unset})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
