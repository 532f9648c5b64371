// Package test provides the containers used by the integration tests: a
// MongoDB server and a MailHog SMTP server.
package test

import (
	"context"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// MailSMTPPort is the SMTP port used by the mail test container.
	MailSMTPPort nat.Port = "1025/tcp"
	// MailAPIPort is the API port used by the mail test container.
	MailAPIPort nat.Port = "8025/tcp"
)

// StartMailService starts a MailHog container for testing email functionality.
func StartMailService(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mailhog/mailhog",
				ExposedPorts: []string{string(MailSMTPPort), string(MailAPIPort)},
				WaitingFor: wait.ForAll(
					wait.ForListeningPort(MailSMTPPort),
					wait.ForListeningPort(MailAPIPort),
				),
			},
			Started: true,
		})
}
