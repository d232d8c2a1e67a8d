package otel

import (
	"context"
	"errors"
	"fmt"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const (
	decisionsName      = "goguard_authorize_decisions_total"
	emergencyLevelName = "goguard_emergency_level"
	openBreakersName   = "goguard_breakers_open"
	scopedActiveName   = "goguard_scoped_emergencies_active"
	auditDroppedName   = "goguard_audit_dropped_total"
	reasonKey          = attribute.Key("reason")
)

// Source is the engine surface the exporter reads on each collection.
type Source interface {
	MetricsSnapshot() goGuard.MetricsSnapshot
	AuditDropped() uint64
	GetCurrentEmergencyLevel(ctx context.Context) goGuard.EmergencyLevel
	SecurityReport() goGuard.SecurityReport
}

type decisionSeries struct {
	id    goGuard.MetricID
	attrs metric.ObserveOption
}

type observedCounter struct {
	id         goGuard.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter publishes goGuard state through observable OTel instruments:
// Authorize outcomes as one counter split by reason, the remaining engine
// counters, the latency histogram as cumulative bucket gauges, and gauges
// for the global emergency level and open breakers.
type Exporter struct {
	source       Source
	registration metric.Registration

	decisions      metric.Int64ObservableCounter
	decisionSeries []decisionSeries
	counters       []observedCounter
	latencyBuckets [8]metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	emergencyLevel metric.Int64ObservableGauge
	openBreakers   metric.Int64ObservableGauge
	scopedActive   metric.Int64ObservableGauge
	auditDropped   metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter that read engine on each
// collection.
func NewExporter(meter metric.Meter, engine *goGuard.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter over any Source.
func NewExporterFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	decisions, err := meter.Int64ObservableCounter(decisionsName,
		metric.WithDescription("Authorize decisions by reason."))
	if err != nil {
		return nil, fmt.Errorf("create decisions counter: %w", err)
	}
	e.decisions = decisions
	observables = append(observables, decisions)
	for _, def := range internaldefs.DecisionDefs {
		e.decisionSeries = append(e.decisionSeries, decisionSeries{
			id:    def.ID,
			attrs: metric.WithAttributeSet(attribute.NewSet(reasonKey.String(def.Reason))),
		})
	}

	for _, def := range internaldefs.CounterDefs {
		if internaldefs.IsDecision(def.ID) {
			continue
		}
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	latency := internaldefs.HistogramDefs[0]
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := latency.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative Authorize latency bucket."))
		if err != nil {
			return nil, fmt.Errorf("create latency bucket %s: %w", name, err)
		}
		e.latencyBuckets[i] = ins
		observables = append(observables, ins)
	}
	if e.latencyCount, err = meter.Int64ObservableGauge(latency.Name+"_count",
		metric.WithDescription("Authorize latency sample count.")); err != nil {
		return nil, fmt.Errorf("create latency count: %w", err)
	}
	observables = append(observables, e.latencyCount)

	if e.emergencyLevel, err = meter.Int64ObservableGauge(emergencyLevelName,
		metric.WithDescription("Effective global emergency level, 0 none to 4 critical.")); err != nil {
		return nil, fmt.Errorf("create emergency level gauge: %w", err)
	}
	if e.openBreakers, err = meter.Int64ObservableGauge(openBreakersName,
		metric.WithDescription("Circuit breakers currently open.")); err != nil {
		return nil, fmt.Errorf("create open breakers gauge: %w", err)
	}
	if e.scopedActive, err = meter.Int64ObservableGauge(scopedActiveName,
		metric.WithDescription("Scopes with an active emergency.")); err != nil {
		return nil, fmt.Errorf("create scoped emergencies gauge: %w", err)
	}
	if e.auditDropped, err = meter.Int64ObservableCounter(auditDroppedName,
		metric.WithDescription("Audit events dropped under dispatcher backpressure.")); err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.emergencyLevel, e.openBreakers, e.scopedActive, e.auditDropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) observe(ctx context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, s := range e.decisionSeries {
		o.ObserveInt64(e.decisions, int64(snapshot.Counters[s.id]), s.attrs)
	}
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	raw := snapshot.Histograms[internaldefs.HistogramDefs[0].ID]
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	for i, v := range cumulative {
		o.ObserveInt64(e.latencyBuckets[i], int64(v))
	}
	o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))

	report := e.source.SecurityReport()
	active := 0
	for _, level := range report.ScopedEmergencies {
		if level != goGuard.LevelNone.String() {
			active++
		}
	}
	o.ObserveInt64(e.emergencyLevel, int64(e.source.GetCurrentEmergencyLevel(ctx)))
	o.ObserveInt64(e.openBreakers, int64(len(report.OpenBreakers)))
	o.ObserveInt64(e.scopedActive, int64(active))
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
