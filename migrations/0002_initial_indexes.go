package migrations

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func init() {
	AddMigration(2, "initial_indexes", upInitialIndexes, downInitialIndexes)
}

const (
	cancelsVendorTimeIndex = "vendorKey_1_time_-1"
	cancelsUserIndex       = "userId_1"
	vendorsCreatedAtIndex  = "createdAt_1"
)

func upInitialIndexes(ctx context.Context, database *mongo.Database) error {
	if _, err := database.Collection("cancels").Indexes().CreateMany(ctx, []mongo.IndexModel{
		// reporting queries list the cancellations of a vendor, newest first
		{
			Keys: bson.D{
				{Key: "vendorKey", Value: 1},
				{Key: "time", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("failed to create indexes for cancels: %w", err)
	}
	if _, err := database.Collection("vendors").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create index on createdAt for vendors: %w", err)
	}
	return nil
}

func downInitialIndexes(ctx context.Context, database *mongo.Database) error {
	if err := dropIndexes(ctx, database.Collection("cancels"), cancelsVendorTimeIndex, cancelsUserIndex); err != nil {
		return err
	}
	return dropIndexes(ctx, database.Collection("vendors"), vendorsCreatedAtIndex)
}
