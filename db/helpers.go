package db

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	vendorsCollection       = "vendors"
	cancellationsCollection = "cancels"
	migrationsCollection    = "migrations"
)

// initCollections gets the handles of the collections used by the storage.
// The collections themselves, their validators and indexes are created by the
// migrations.
func (ms *MongoStorage) initCollections() {
	database := ms.DBClient.Database(ms.database)
	ms.vendors = database.Collection(vendorsCollection)
	ms.cancellations = database.Collection(cancellationsCollection)
	ms.migrations = database.Collection(migrationsCollection)
}

// dynamicUpdateDocument creates a BSON update document from a struct,
// including only non-zero fields. Fields tagged with bson "_id", "-" or
// ",inline" are skipped, so are the fields named in skipTags. Fields named in
// alwaysUpdateTags are included even when they hold their zero value.
func dynamicUpdateDocument(item any, alwaysUpdateTags, skipTags []string) (bson.M, error) {
	val := reflect.ValueOf(item)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() || val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input must be a valid struct")
	}
	alwaysUpdate := make(map[string]bool, len(alwaysUpdateTags))
	for _, tag := range alwaysUpdateTags {
		alwaysUpdate[tag] = true
	}
	skip := make(map[string]bool, len(skipTags))
	for _, tag := range skipTags {
		skip[tag] = true
	}
	update := bson.M{}
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanInterface() {
			continue
		}
		tag := bsonFieldName(typ.Field(i).Tag.Get("bson"))
		if tag == "" || tag == "-" || tag == "_id" || skip[tag] {
			continue
		}
		if alwaysUpdate[tag] || !field.IsZero() {
			update[tag] = field.Interface()
		}
	}
	return bson.M{"$set": update}, nil
}

// bsonFieldName returns the field name part of a bson struct tag.
func bsonFieldName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}
