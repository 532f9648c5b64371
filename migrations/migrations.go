// Package migrations holds the versioned MongoDB migrations of the vendors and
// cancels collections. Every migration registers itself from an init func and
// must be idempotent.
package migrations

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"go.mongodb.org/mongo-driver/mongo"
)

// MigrationFunc applies or rolls back a migration on the database provided.
type MigrationFunc func(ctx context.Context, database *mongo.Database) error

// Migration represents a single migration
type Migration struct {
	Version int
	Name    string
	Up      MigrationFunc
	Down    MigrationFunc
}

var registry = make(map[int]Migration)

// AddMigration registers a migration. Registering a version twice replaces the
// previous one.
func AddMigration(version int, name string, up, down MigrationFunc) {
	registry[version] = Migration{
		Version: version,
		Name:    name,
		Up:      up,
		Down:    down,
	}
}

// DelMigration deregisters a migration.
func DelMigration(version int) { delete(registry, version) }

// SortedByVersionAsc returns all registered migrations, sorted by ascending
// version.
func SortedByVersionAsc() []Migration {
	migs := slices.Collect(maps.Values(registry))
	slices.SortFunc(migs, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migs
}

// AsMap returns a copy of the registry indexed by version.
func AsMap() map[int]Migration {
	return maps.Clone(registry)
}
