// Package db implements the MongoDB storage of vendors and cancellation
// records.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.vocdoni.io/dvote/log"
)

// defaultTimeout bounds every single storage operation.
const defaultTimeout = 10 * time.Second

// ResetEnv is the environment variable that makes New drop every collection
// before running the migrations.
const ResetEnv = "CANCELREADY_MONGO_RESET_DB"

// MongoStorage uses an external MongoDB service for storing the vendors and
// the cancellation audit trail.
type MongoStorage struct {
	DBClient *mongo.Client
	database string
	keysLock sync.RWMutex

	vendors       *mongo.Collection
	cancellations *mongo.Collection
	migrations    *mongo.Collection
}

// New connects to the MongoDB server, applies the pending migrations and
// returns the storage ready to use.
func New(url, database string) (*MongoStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Infow("connecting to mongodb", "database", database)
	// preparing connection
	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(200)
	timeout := time.Second * 10
	opts.ConnectTimeout = &timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// check if the connection is successful
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	ms := &MongoStorage{
		DBClient: client,
		database: database,
	}
	ms.initCollections()
	// if reset flag is enabled, Reset drops the database documents and runs
	// the migrations again, else just run the pending migrations
	if reset := os.Getenv(ResetEnv); reset != "" {
		if err := ms.Reset(); err != nil {
			return nil, err
		}
		return ms, nil
	}
	if err := ms.RunMigrationsUp(); err != nil {
		return nil, err
	}
	return ms, nil
}

// Close disconnects the client.
func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ms.DBClient.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset drops every collection and recreates them by running the migrations
// from scratch.
func (ms *MongoStorage) Reset() error {
	log.Infof("resetting database")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, collection := range []*mongo.Collection{ms.vendors, ms.cancellations, ms.migrations} {
		if err := collection.Drop(ctx); err != nil {
			return err
		}
	}
	return ms.RunMigrationsUp()
}

// String returns a JSON dump of the vendors collection. Vendor credentials are
// never part of the dump.
func (ms *MongoStorage) String() string {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cur, err := ms.vendors.Find(ctx, bson.D{{}})
	if err != nil {
		log.Warn(err)
		return "{}"
	}
	var vendors VendorCollection
	for cur.Next(ctx) {
		var vendor Vendor
		if err := cur.Decode(&vendor); err != nil {
			log.Warn(err)
			continue
		}
		vendors.Vendors = append(vendors.Vendors, vendor)
	}
	data, err := json.Marshal(&vendors)
	if err != nil {
		log.Warn(err)
	}
	return string(data)
}
