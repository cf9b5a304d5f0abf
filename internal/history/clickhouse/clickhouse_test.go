package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/krishid/internal/history"
)

// setupClickHouseContainer starts a ClickHouse container and returns the native address.
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()
	c, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start ClickHouse container: %v", err)
	}
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000")
	require.NoError(t, err)
	return c, host + ":" + port.Port()
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, addr := setupClickHouseContainer(ctx, t)
	defer func() { _ = container.Terminate(ctx) }()

	sink, err := New(Options{Addr: addr})
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	require.NoError(t, sink.EnsureSchema(ctx))

	now := time.Now().UTC()
	require.NoError(t, sink.Send(ctx, history.Event{
		Type: history.EventCheck, OccurredAt: now, Endpoint: "http://127.0.0.1:5000", Status: "running", Success: true, LatencyMS: 1.2,
	}))
	require.NoError(t, sink.Send(ctx, history.Event{
		Type: history.EventGuidance, OccurredAt: now, Endpoint: "http://127.0.0.1:5000", Detail: "manual start required",
	}))

	n, err := sink.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	n, err = sink.Count(ctx, history.EventGuidance)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestClickHouseSink_ConnectionError(t *testing.T) {
	_, err := New(Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
