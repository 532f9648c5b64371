package test

import (
	"context"
	"fmt"

	"github.com/cancelready/backend/internal"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoPort is the port exposed by the MongoDB test container.
const MongoPort nat.Port = "27017/tcp"

// StartMongoContainer starts a standalone MongoDB container. Use
// container.Endpoint(ctx, "mongodb") to get its connection string.
func StartMongoContainer(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{string(MongoPort)},
				WaitingFor: wait.ForAll(
					wait.ForLog("Waiting for connections"),
					wait.ForListeningPort(MongoPort),
				),
			},
			Started: true,
		})
}

// RandomDatabaseName returns a database name unique to the caller, so tests
// sharing a container don't see each other's documents.
func RandomDatabaseName() string {
	return fmt.Sprintf("cancelready-test-%s", internal.RandomHex(8))
}
