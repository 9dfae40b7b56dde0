package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-telemetry/internal/api"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/tsdb"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// httpTransport adapts tsdb.Client to telemetry.Transport.
type httpTransport struct {
	client *tsdb.Client
}

// Write implements telemetry.Transport.
func (t httpTransport) Write(ctx context.Context, req telemetry.WriteRequest) error {
	return t.client.Write(ctx, req.URL, req.Token, req.Body)
}

// clientTransport adapts influxdb.Client to telemetry.Transport. The
// client builds its own URL from organisation and bucket.
type clientTransport struct {
	client *influxdb.Client
}

// Write implements telemetry.Transport.
func (t clientTransport) Write(ctx context.Context, req telemetry.WriteRequest) error {
	return t.client.Write(ctx, req.Organization, req.Bucket, req.Body)
}

// writeTarget bundles a transport with its health check and cleanup.
type writeTarget struct {
	transport telemetry.Transport
	health    api.HealthCheck
	close     func() error
}

// newWriteTarget builds the transport selected by cfg.Transport.
//
// Parameters:
//   - ctx: Context for the initial connection (client transport only)
//   - cfg: InfluxDB section of the configuration
//
// Returns:
//   - writeTarget: Transport, health check and close function
//   - error: If the transport cannot be created or connected
func newWriteTarget(ctx context.Context, cfg config.InfluxDBConfig) (writeTarget, error) {
	switch cfg.Transport {
	case config.TransportClient:
		c, err := influxdb.Connect(ctx, cfg)
		if err != nil {
			return writeTarget{}, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		return writeTarget{transport: clientTransport{client: c}, health: c.HealthCheck, close: c.Close}, nil

	case config.TransportHTTP, "":
		c, err := tsdb.New(cfg)
		if err != nil {
			return writeTarget{}, fmt.Errorf("creating InfluxDB HTTP client: %w", err)
		}
		return writeTarget{transport: httpTransport{client: c}, health: c.HealthCheck, close: func() error { return nil }}, nil

	default:
		return writeTarget{}, fmt.Errorf("unknown influxdb transport %q", cfg.Transport)
	}
}

// discardTransport accepts every write. `validate` uses it to build a
// publisher without touching the network.
type discardTransport struct{}

// Write implements telemetry.Transport.
func (discardTransport) Write(context.Context, telemetry.WriteRequest) error { return nil }
