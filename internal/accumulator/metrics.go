package accumulator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// metrics wraps the accumulator's OpenTelemetry counters. With no meter
// provider installed these are no-ops, which is the default for a desktop
// daemon.
type metrics struct {
	eventsScored   metric.Int64Counter
	eventsAccepted metric.Int64Counter
	eventsRejected metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter("boni/accumulator")

	scored, _ := meter.Int64Counter("boni.events.scored",
		metric.WithDescription("Trigger events scored by the accumulator"))
	accepted, _ := meter.Int64Counter("boni.events.accepted",
		metric.WithDescription("Trigger events accepted for a reasoning call"))
	rejected, _ := meter.Int64Counter("boni.events.rejected",
		metric.WithDescription("Trigger events rejected by the acceptance policy"))

	return &metrics{
		eventsScored:   scored,
		eventsAccepted: accepted,
		eventsRejected: rejected,
	}
}

func (m *metrics) scored(reason models.TriggerReason) {
	m.eventsScored.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (m *metrics) accepted(reason models.TriggerReason, forced bool) {
	m.eventsAccepted.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("reason", string(reason)),
			attribute.Bool("forced", forced)))
}

func (m *metrics) rejected(cause string) {
	m.eventsRejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("cause", cause)))
}
