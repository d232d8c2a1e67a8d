package goGuard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goGuard/internal/approval"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/ratelimit"
	"github.com/MrEthical07/goGuard/internal/resilience"
	"github.com/MrEthical07/goGuard/internal/router"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. It is configured during initialization and
// can build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	members       map[string][]string
	proposalStore ProposalStore
	executor      Executor
	auditSink     AuditSink
	logger        *zap.Logger
	clock         func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used when RateLimit.Backend is "redis".
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMembers bootstraps the membership table: member ID to role names.
func (b *Builder) WithMembers(members map[string][]string) *Builder {
	b.members = members
	return b
}

// WithProposalStore persists proposals in store instead of process memory.
func (b *Builder) WithProposalStore(store ProposalStore) *Builder {
	b.proposalStore = store
	return b
}

// WithExecutor sets the action run by ExecuteProposal and EmergencyExecute.
func (b *Builder) WithExecutor(exec Executor) *Builder {
	b.executor = exec
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now. The engine reads the clock once per call.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- MEMBERSHIP --------
	registry, err := permission.NewRegistry(allRoles...)
	if err != nil {
		return nil, err
	}
	registry.Freeze()
	members := permission.NewTable(registry)

	ids := make([]string, 0, len(b.members))
	for id := range b.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, role := range b.members[id] {
			if _, err := members.Grant(id, role); err != nil {
				return nil, fmt.Errorf("member %q: %w", id, err)
			}
		}
	}

	// -------- RATE LIMITER --------
	var store ratelimit.Store
	switch cfg.RateLimit.Backend {
	case BackendRedis:
		if b.redis == nil {
			return nil, errors.New("redis backend requires redis client")
		}
		store = ratelimit.NewRedisStore(b.redis, cfg.RateLimit.RedisPrefix)
	default:
		store = ratelimit.NewMemoryStore(cfg.RateLimit.MemoryShards)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:  cfg,
		logger:  logger.Named("goguard"),
		clock:   clock,
		members: members,
		limiter: ratelimit.New(store),
		monitor: resilience.NewMonitor(cfg.Resilience.GuardianQuorum),
		router:  router.New(),
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- APPROVAL GUARD --------
	guard, err := approval.NewGuard(approval.Config{
		RequiredApprovals: cfg.Approval.RequiredApprovals,
		MinDelay:          cfg.Approval.MinDelay,
		Lifetime:          cfg.Approval.Lifetime,
	}, b.proposalStore, approvedCallExecutor{next: b.executor})
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	engine.approvals = guard

	engine.router.SetBypass(cfg.Router.StartInBypass)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}

// approvedCallExecutor marks the executor context so that Authorize calls
// made by the action pass the approval requirement.
type approvedCallExecutor struct {
	next Executor
}

func (a approvedCallExecutor) Execute(ctx context.Context, p Proposal) error {
	if a.next == nil {
		return nil
	}
	return a.next.Execute(WithApprovedCall(ctx), p)
}
