package goGuard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/approval"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/ratelimit"
	"github.com/MrEthical07/goGuard/internal/resilience"
	"github.com/MrEthical07/goGuard/internal/router"
	"github.com/MrEthical07/goGuard/permission"
	"go.uber.org/zap"
)

// Engine is the security control plane. It is safe for concurrent use once
// built.
type Engine struct {
	config    Config
	logger    *zap.Logger
	clock     func() time.Time
	members   *permission.Table
	limiter   *ratelimit.Limiter
	approvals *approval.Guard
	monitor   *resilience.Monitor
	router    *router.Table
	audit     *audit.Dispatcher
	metrics   *Metrics
}

// Close stops the audit dispatcher after flushing buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

// Config returns a copy of the static configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// AuditDropped reports audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	return e.clock()
}

// require returns nil when actor holds at least one of roles.
func (e *Engine) require(actor string, roles ...string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if actor != "" {
		for _, role := range roles {
			if e.members.Has(actor, role) {
				return nil
			}
		}
	}
	e.metricInc(MetricUnauthorized)
	return fmt.Errorf("%w: %q requires role %s", ErrUnauthorized, actor, strings.Join(roles, " or "))
}

// translate maps internal package errors onto the root sentinels that are
// not shared directly.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrStoreUnavailable),
		errors.Is(err, approval.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case errors.Is(err, ratelimit.ErrInvalidConfig),
		errors.Is(err, approval.ErrInvalidConfig),
		errors.Is(err, resilience.ErrInvalidConfig):
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	case errors.Is(err, ratelimit.ErrNotConfigured),
		errors.Is(err, resilience.ErrNotConfigured):
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return err
}
