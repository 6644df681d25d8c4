package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess/monitoring"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultPingTimeout = 5 * time.Second

// ErrNoURI is returned when a MongoDB connection is attempted without a URI.
var ErrNoURI = errors.New("mongo uri is empty")

// MongoDB describes how to reach a MongoDB deployment.
type MongoDB struct {
	// URI is a standard or SRV connection string.
	URI string

	// PingTimeout bounds the ping made before the client is returned. Zero uses five seconds.
	PingTimeout time.Duration
}

// Connect opens a client and pings the primary before returning it.
func (m *MongoDB) Connect(ctx context.Context) (*mongo.Client, error) {
	if m.URI == "" {
		return nil, ErrNoURI
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(m.URI).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}

	done := monitoring.Observe("mongo", "ping", "-", "-")
	defer done()

	timeout := m.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging mongo: %w", err)
	}
	return client, nil
}
