package tprl

import (
	"fmt"
	"log/slog"

	"github.com/casualjim/roost/pkg/slogx"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// NewClient creates a lazy Temporal client that logs through slog. An empty
// hostPort means client.DefaultHostPort.
func NewClient(hostPort string) (client.Client, error) {
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	lg := slog.Default().With(slogx.LoggerName("roost.temporal"))

	cl, err := client.NewLazyClient(client.Options{
		HostPort: hostPort,
		Logger:   log.NewStructuredLogger(lg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	return cl, nil
}
