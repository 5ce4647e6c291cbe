package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultNATSImage = "nats:2.10-alpine"

// TestNATS holds a NATS server container and its client URL
type TestNATS struct {
	URL       string
	container testcontainers.Container
}

// SetupTestNATS starts a NATS server container. TEST_NATS_IMAGE overrides the image.
func SetupTestNATS(t *testing.T) *TestNATS {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		t.Logf("No .env file found or failed to load: %v. Proceeding with environment variables.", err)
	}
	image := os.Getenv("TEST_NATS_IMAGE")
	if image == "" {
		image = defaultNATSImage
	}

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		terminate(t, container)
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		terminate(t, container)
		t.Fatal(err)
	}

	return &TestNATS{
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
		container: container,
	}
}

// Teardown stops the NATS container
func (tn *TestNATS) Teardown(t *testing.T) {
	if err := tn.container.Terminate(context.Background()); err != nil {
		t.Fatalf("Failed to terminate container: %v", err)
	}
}

func terminate(t *testing.T, container testcontainers.Container) {
	if err := container.Terminate(context.Background()); err != nil {
		t.Fatalf("Failed to terminate container: %v", err)
	}
}
