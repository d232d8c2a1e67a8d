package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/audit/kafka"
	"github.com/MrEthical07/goGuard/httpapi"
	"github.com/MrEthical07/goGuard/jwt"
	promexport "github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/policy"
)

type serveOptions struct {
	addr           string
	policyPath     string
	bootstrapAdmin string
	redisAddr      string
	sqliteDSN      string
	jwtKeyEnv      string
	kafkaBrokers   []string
	kafkaTopic     string
	metrics        bool
	minDelay       time.Duration
	approvals      int
	quorum         int
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin and status HTTP API",
	Long: `Build an engine, apply a policy and serve the HTTP API.

The rate limit backend is in-process unless --redis-addr is set. Use
--redis-addr=miniredis for an embedded Redis. Proposals are kept in memory
unless --sqlite names a database.

Operator tokens are HS256 JWTs signed with the key in $GOGUARD_JWT_KEY.

Example:
  GOGUARD_JWT_KEY=... goguard serve --policy policy.yaml --bootstrap-admin root`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", ":8080", "Listen address")
	f.StringVar(&serveOpts.policyPath, "policy", "", "Policy file applied at startup")
	f.StringVar(&serveOpts.bootstrapAdmin, "bootstrap-admin", "", "Member granted admin and configurator at startup")
	f.StringVar(&serveOpts.redisAddr, "redis-addr", "", "Redis address for rate limit state, or \"miniredis\"")
	f.StringVar(&serveOpts.sqliteDSN, "sqlite", "", "SQLite DSN for proposals")
	f.StringVar(&serveOpts.jwtKeyEnv, "jwt-key-env", "GOGUARD_JWT_KEY", "Environment variable holding the HS256 key")
	f.StringSliceVar(&serveOpts.kafkaBrokers, "kafka-brokers", nil, "Kafka brokers for the audit sink")
	f.StringVar(&serveOpts.kafkaTopic, "kafka-topic", "goguard.audit", "Kafka topic for audit events")
	f.BoolVar(&serveOpts.metrics, "metrics", true, "Serve Prometheus metrics on /metrics")
	f.DurationVar(&serveOpts.minDelay, "min-delay", 24*time.Hour, "Minimum delay before a proposal executes")
	f.IntVar(&serveOpts.approvals, "approvals", 2, "Approvals required to execute a proposal")
	f.IntVar(&serveOpts.quorum, "guardian-quorum", 2, "Guardian votes required for high and critical levels")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(logLevel, logFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key := os.Getenv(serveOpts.jwtKeyEnv)
	if key == "" {
		return fmt.Errorf("$%s is not set", serveOpts.jwtKeyEnv)
	}
	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(key),
		Issuer:        "goguard",
	})
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	cfg := goGuard.DefaultConfig()
	cfg.Approval.RequiredApprovals = serveOpts.approvals
	cfg.Approval.MinDelay = serveOpts.minDelay
	cfg.Resilience.GuardianQuorum = serveOpts.quorum
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = serveOpts.metrics
	cfg.Metrics.EnableLatencyHistograms = serveOpts.metrics

	b := goGuard.New().WithLogger(logger)

	// -------- RATE LIMIT BACKEND --------
	if serveOpts.redisAddr != "" {
		client, closeRedis, err := dialRedis(serveOpts.redisAddr)
		if err != nil {
			return err
		}
		defer closeRedis()
		cfg.RateLimit.Backend = goGuard.BackendRedis
		b.WithRedis(client)
		logger.Info("rate limits in redis", zap.String("addr", serveOpts.redisAddr))
	}

	// -------- PROPOSAL STORE --------
	if serveOpts.sqliteDSN != "" {
		store, db, err := goGuard.OpenSQLiteProposalStore(serveOpts.sqliteDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		b.WithProposalStore(store)
	}

	// -------- AUDIT --------
	sinks := goGuard.MultiSink{goGuard.NewZapSink(logger)}
	if len(serveOpts.kafkaBrokers) > 0 {
		producer, err := kafka.NewSyncProducer(serveOpts.kafkaBrokers, "goguard")
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		sink, err := kafka.NewSink(kafka.Options{Producer: producer, Topic: serveOpts.kafkaTopic, Logger: logger})
		if err != nil {
			_ = producer.Close()
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}
	b.WithAuditSink(sinks)

	if serveOpts.bootstrapAdmin != "" {
		b.WithMembers(map[string][]string{
			serveOpts.bootstrapAdmin: {goGuard.RoleAdmin, goGuard.RoleConfigurator},
		})
	}

	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if serveOpts.policyPath != "" {
		doc, err := policy.Load(serveOpts.policyPath)
		if err != nil {
			return err
		}
		if err := engine.ApplyPolicy(ctx, serveOpts.bootstrapAdmin, doc); err != nil {
			return fmt.Errorf("apply policy: %w", err)
		}
		logger.Info("policy applied",
			zap.String("path", serveOpts.policyPath),
			zap.Int("operations", len(doc.Operations)),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", httpapi.New(engine, tokens, logger).Handler())
	if serveOpts.metrics {
		mux.Handle("GET /metrics", promexport.NewCollector(engine).Handler())
	}

	srv := &http.Server{
		Addr:              serveOpts.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", serveOpts.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// dialRedis connects to addr, or starts an embedded server when addr is
// "miniredis".
func dialRedis(addr string) (redis.UniversalClient, func(), error) {
	if strings.EqualFold(addr, "miniredis") {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}
