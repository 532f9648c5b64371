package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.vocdoni.io/dvote/log"
)

// listCollectionsInDB returns the names of the collections in the given
// database.
func listCollectionsInDB(ctx context.Context, database *mongo.Database) ([]string, error) {
	collectionsCursor, err := database.ListCollections(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := collectionsCursor.Close(ctx); err != nil {
			log.Warnw("failed to close collections cursor", "error", err)
		}
	}()
	collections := []bson.D{}
	if err := collectionsCursor.All(ctx, &collections); err != nil {
		return nil, err
	}
	names := []string{}
	for _, col := range collections {
		for _, v := range col {
			if v.Key == "name" {
				names = append(names, v.Value.(string))
			}
		}
	}
	return names, nil
}

// renameField renames oldField to newField in every document that has the old
// field and not the new one, so running it twice is harmless.
func renameField(ctx context.Context, collection *mongo.Collection, oldField, newField string) error {
	filter := bson.M{
		oldField: bson.M{"$exists": true},
		newField: bson.M{"$exists": false},
	}
	update := bson.M{"$rename": bson.M{oldField: newField}}
	res, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to rename %s -> %s in %s: %w",
			oldField, newField, collection.Name(), err)
	}
	if res.ModifiedCount > 0 {
		log.Infow("renamed field",
			"collection", collection.Name(),
			"from", oldField,
			"to", newField,
			"documents", res.ModifiedCount)
	}
	return nil
}

// dropIndexes drops the named indexes, ignoring the ones that don't exist.
func dropIndexes(ctx context.Context, collection *mongo.Collection, names ...string) error {
	for _, name := range names {
		if _, err := collection.Indexes().DropOne(ctx, name); err != nil {
			if strings.Contains(err.Error(), "IndexNotFound") || strings.Contains(err.Error(), "index not found") {
				continue
			}
			return fmt.Errorf("failed to drop index %s for collection %s: %w",
				name, collection.Name(), err)
		}
	}
	return nil
}
