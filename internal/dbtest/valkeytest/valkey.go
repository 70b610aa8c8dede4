// Package valkeytest runs a throwaway Valkey container for the auth state store tests.
package valkeytest

import (
	"context"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"
)

const (
	Image = "valkey/valkey:8-alpine"
	Host  = "localhost"
)

// Start runs a Valkey instance and returns a connected client, its mapped port and a termination function.
// The client is checked with a PING before it is returned.
func Start(ctx context.Context) (valkey.Client, nat.Port, func(ctx context.Context)) {
	valkeyContainer, err := valkeycontainer.Run(ctx, Image)
	if err != nil {
		slogctx.Error(ctx, "Failed to start Valkey container", "error", err)
		panic(err)
	}

	port, err := valkeyContainer.MappedPort(ctx, nat.Port("6379"))
	if err != nil {
		slogctx.Error(ctx, "Failed to map a port for the Valkey container", "error", err)
		panic(err)
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{Addr(port)},
	})
	if err != nil {
		slogctx.Error(ctx, "Failed to initialise a Valkey client", "error", err)
		panic(err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		slogctx.Error(ctx, "Valkey container does not answer", "error", err)
		panic(err)
	}

	terminate := func(ctx context.Context) {
		client.Close()

		if err := valkeyContainer.Terminate(ctx); err != nil {
			slogctx.Error(ctx, "Failed to terminate Valkey container", "error", err)
			panic(err)
		}
	}

	return client, port, terminate
}

// Addr is the host:port a client reaches the container on.
func Addr(port nat.Port) string {
	return net.JoinHostPort(Host, port.Port())
}
