// Package observe provides the encounter's OpenTelemetry metrics and the HTTP middleware that records
// request latency.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) uses the global meter provider; tests
// should use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jwebster45206/stealth-engine"

// Metrics holds all metric instruments. The OTel types handle their own synchronisation.
type Metrics struct {
	// Detections counts sensor detection edges. Attribute: guard_id.
	Detections metric.Int64Counter

	// Escalations counts trust breaches and hostile endings that summoned a guard.
	// Attributes: npc_id, guard_id.
	Escalations metric.Int64Counter

	// Catches counts encounters that ended in capture. Attribute: guard_id.
	Catches metric.Int64Counter

	// TrustSteps counts single trust steps applied by the ledgers. Attribute: npc_id.
	TrustSteps metric.Int64Counter

	// GuardTransitions counts guard state changes. Attributes: guard_id, state.
	GuardTransitions metric.Int64Counter

	// DialogueEndings counts completed conversations. Attributes: npc_id, tier.
	DialogueEndings metric.Int64Counter

	// Commands counts player commands by type and status.
	Commands metric.Int64Counter

	// ActiveChases is the number of guards currently in pursuit.
	ActiveChases metric.Int64UpDownCounter

	// TickDuration is the wall-clock cost of one simulation tick.
	TickDuration metric.Float64Histogram

	// HTTPRequestDuration tracks request latency. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

var tickBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Detections, err = m.Int64Counter("stealth.detections",
		metric.WithDescription("Player detections by guard."),
	); err != nil {
		return nil, err
	}
	if met.Escalations, err = m.Int64Counter("stealth.escalations",
		metric.WithDescription("Escalations by NPC and responding guard."),
	); err != nil {
		return nil, err
	}
	if met.Catches, err = m.Int64Counter("stealth.catches",
		metric.WithDescription("Player captures by guard."),
	); err != nil {
		return nil, err
	}
	if met.TrustSteps, err = m.Int64Counter("stealth.trust.steps",
		metric.WithDescription("Single trust steps applied by NPC."),
	); err != nil {
		return nil, err
	}
	if met.GuardTransitions, err = m.Int64Counter("stealth.guard.transitions",
		metric.WithDescription("Guard state transitions by guard and target state."),
	); err != nil {
		return nil, err
	}
	if met.DialogueEndings, err = m.Int64Counter("stealth.dialogue.endings",
		metric.WithDescription("Completed conversations by NPC and ending tier."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("stealth.commands",
		metric.WithDescription("Player commands by type and status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveChases, err = m.Int64UpDownCounter("stealth.active_chases",
		metric.WithDescription("Guards currently chasing the player."),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("stealth.tick.duration",
		metric.WithDescription("Wall-clock time spent in one simulation tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("stealth.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on [otel.GetMeterProvider]. Panics if
// instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordDetection(ctx context.Context, guardID string) {
	m.Detections.Add(ctx, 1, metric.WithAttributes(attribute.String("guard_id", guardID)))
}

func (m *Metrics) RecordEscalation(ctx context.Context, npcID, guardID string) {
	m.Escalations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("npc_id", npcID),
		attribute.String("guard_id", guardID),
	))
}

func (m *Metrics) RecordCatch(ctx context.Context, guardID string) {
	m.Catches.Add(ctx, 1, metric.WithAttributes(attribute.String("guard_id", guardID)))
}

func (m *Metrics) RecordTrustStep(ctx context.Context, npcID string) {
	m.TrustSteps.Add(ctx, 1, metric.WithAttributes(attribute.String("npc_id", npcID)))
}

func (m *Metrics) RecordDialogueEnding(ctx context.Context, npcID, tier string) {
	m.DialogueEndings.Add(ctx, 1, metric.WithAttributes(
		attribute.String("npc_id", npcID),
		attribute.String("tier", tier),
	))
}

func (m *Metrics) RecordCommand(ctx context.Context, commandType, status string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", commandType),
		attribute.String("status", status),
	))
}

// RecordGuardTransition counts the transition and keeps ActiveChases in step with guards entering and
// leaving the chase state.
func (m *Metrics) RecordGuardTransition(ctx context.Context, guardID, from, to string) {
	m.GuardTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guard_id", guardID),
		attribute.String("state", to),
	))
	switch {
	case to == "chase" && from != "chase":
		m.ActiveChases.Add(ctx, 1)
	case from == "chase" && to != "chase":
		m.ActiveChases.Add(ctx, -1)
	}
}

func (m *Metrics) RecordTick(ctx context.Context, seconds float64) {
	m.TickDuration.Record(ctx, seconds)
}
