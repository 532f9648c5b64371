package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cancelready/backend/migrations"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// migrationsTimeout bounds a whole migrations run.
const migrationsTimeout = 10 * time.Minute

// RunMigrationsUp executes all pending database migrations.
func (ms *MongoStorage) RunMigrationsUp() error {
	ctx, cancel := context.WithTimeout(context.Background(), migrationsTimeout)
	defer cancel()

	lastMigration, err := lastAppliedMigration(ctx, ms.migrations)
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}
	migs := migrations.SortedByVersionAsc()
	if len(migs) == 0 || migs[len(migs)-1].Version <= lastMigration {
		log.Infow("database is up-to-date, no need to migrate", "version", lastMigration)
		return nil
	}
	log.Infow("starting database migrations",
		"migrationsAvailable", len(migs),
		"lastAppliedMigration", lastMigration)

	database := ms.DBClient.Database(ms.database)
	for _, migration := range migs {
		if migration.Version <= lastMigration {
			continue
		}
		log.Infow("applying migration", "version", migration.Version, "name", migration.Name)
		if err := migration.Up(ctx, database); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		record := MigrationRecord{
			Version:   migration.Version,
			AppliedAt: time.Now(),
		}
		if _, err := ms.migrations.InsertOne(ctx, record); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}
	log.Infow("database migrations completed successfully")
	return nil
}

// RunMigrationsDown rolls back the last steps migrations applied. A steps
// value of zero or less rolls back every migration.
func (ms *MongoStorage) RunMigrationsDown(steps int) error {
	log.Infow("rolling back database migrations", "steps", steps)
	ctx, cancel := context.WithTimeout(context.Background(), migrationsTimeout)
	defer cancel()

	applied, err := appliedMigrations(ctx, ms.migrations)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	if steps <= 0 || steps > len(applied) {
		steps = len(applied)
	}
	registry := migrations.AsMap()
	database := ms.DBClient.Database(ms.database)
	for _, record := range applied[:steps] {
		migration, exists := registry[record.Version]
		if !exists {
			return fmt.Errorf("migration %d not found in registry", record.Version)
		}
		log.Infow("rolling back migration", "version", migration.Version, "name", migration.Name)
		if err := migration.Down(ctx, database); err != nil {
			return fmt.Errorf("failed to rollback migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		if _, err := ms.migrations.DeleteOne(ctx, bson.M{"version": record.Version}); err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", record.Version, err)
		}
	}
	log.Infow("database migration rollback completed successfully")
	return nil
}

// MigrationVersion returns the version of the last migration applied, zero
// when none was applied.
func (ms *MongoStorage) MigrationVersion() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return lastAppliedMigration(ctx, ms.migrations)
}

// lastAppliedMigration returns the last applied migration version.
func lastAppliedMigration(ctx context.Context, collection *mongo.Collection) (int, error) {
	migs, err := appliedMigrations(ctx, collection)
	if err != nil {
		return 0, err
	}
	if len(migs) == 0 {
		return 0, nil
	}
	return migs[0].Version, nil
}

// appliedMigrations returns applied migration records in descending version
// order.
func appliedMigrations(ctx context.Context, collection *mongo.Collection) ([]MigrationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()
	var migs []MigrationRecord
	if err := cursor.All(ctx, &migs); err != nil {
		return nil, fmt.Errorf("failed to decode migrations: %w", err)
	}
	return migs, nil
}
