package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributes(t *testing.T) {
	filtered := FilterAttributes(
		attribute.String("command", "create"),
		attribute.String("reason", "validation_failed"),
		attribute.String("product_id", "123"),
		attribute.String("idempotency_key", "k1"),
	)

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("command", "create"),
		attribute.String("reason", "validation_failed"),
	}, filtered)
}

func TestFilterAttributesEmpty(t *testing.T) {
	assert.Empty(t, FilterAttributes(attribute.String("unbounded", "x")))
	assert.Empty(t, FilterAttributes())
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	// nil metrics are a supported noop wiring
	m.RecordCommandAccepted(ctx, "create")
	m.RecordCommandRejected(ctx, "create", "validation_failed")
	m.RecordVersionConflict(ctx, "update")
	m.RecordIdempotentReplay(ctx, "update")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: ""}, noop.NewMeterProvider())
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordCommandAccepted(context.Background(), "create")
}
