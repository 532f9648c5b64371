package migrations

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	AddMigration(1, "initial_collections", upInitialCollections, downInitialCollections)
}

var collectionsToCreate = []string{
	"vendors",
	"cancels",
	"migrations",
}

var collectionsValidators = map[string]bson.M{
	"vendors": vendorsCollectionValidator,
	"cancels": cancelsCollectionValidator,
}

var vendorsCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":    "string",
				"description": "the vendor key must be a non empty string",
				"minLength":   1,
			},
			"processor": bson.M{
				"bsonType":    "string",
				"description": "the payment processor must be a string",
			},
			"credential": bson.M{
				"bsonType":    "object",
				"description": "the sealed credential must be an object with version, nonce and ciphertext",
				"required":    []string{"version", "nonce", "ciphertext"},
				"properties": bson.M{
					"nonce":      bson.M{"bsonType": "binData"},
					"ciphertext": bson.M{"bsonType": "binData"},
				},
			},
		},
	},
}

var cancelsCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "vendorKey", "userId", "processor", "status", "time"},
		"properties": bson.M{
			"vendorKey": bson.M{
				"bsonType":    "string",
				"description": "must be a string and is required",
			},
			"userId": bson.M{
				"bsonType":    "string",
				"description": "must be a string and is required",
			},
			"status": bson.M{
				"enum":        []string{"pending", "completed", "failed"},
				"description": "must be one of pending, completed or failed",
			},
			"time": bson.M{
				"bsonType":    "date",
				"description": "must be a date and is required",
			},
		},
	},
}

func upInitialCollections(ctx context.Context, database *mongo.Database) error {
	// get the current collections names to create only the missing ones
	currentCollections, err := listCollectionsInDB(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to get current collections: %w", err)
	}
	for _, name := range collectionsToCreate {
		validator, hasValidator := collectionsValidators[name]
		if slices.Contains(currentCollections, name) {
			// keep the validator of existing collections up to date
			if hasValidator {
				if err := database.RunCommand(ctx, bson.D{
					{Key: "collMod", Value: name},
					{Key: "validator", Value: validator},
				}).Err(); err != nil {
					return fmt.Errorf("failed to update %s validator: %w", name, err)
				}
			}
			continue
		}
		opts := options.CreateCollection()
		if hasValidator {
			opts = opts.SetValidator(validator).SetValidationLevel("strict").SetValidationAction("error")
		}
		if err := database.CreateCollection(ctx, name, opts); err != nil {
			return err
		}
	}
	return nil
}

func downInitialCollections(context.Context, *mongo.Database) error {
	// dropping the audit trail is not an acceptable rollback, the up func is
	// idempotent anyway
	return nil
}
