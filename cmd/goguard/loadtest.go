package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	goGuard "github.com/MrEthical07/goGuard"
)

type loadtestOptions struct {
	callers     int
	concurrency int
	ops         int
	qps         float64
	redisAddr   string
	algorithm   string
	maxRequests uint64
	window      time.Duration
}

var loadOpts loadtestOptions

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Measure Authorize throughput and latency",
	Long: `Run Authorize against one rate-limited operation from many callers and
report latency percentiles. --qps paces issue across all workers; 0 runs
unpaced.

Example:
  goguard loadtest --callers 10000 --ops 200000 --redis-addr miniredis`,
	RunE: runLoadtest,
}

func init() {
	f := loadtestCmd.Flags()
	f.IntVar(&loadOpts.callers, "callers", 10000, "Distinct callers")
	f.IntVar(&loadOpts.concurrency, "concurrency", 256, "Concurrent workers")
	f.IntVar(&loadOpts.ops, "ops", 200000, "Authorize calls to issue")
	f.Float64Var(&loadOpts.qps, "qps", 0, "Issue rate limit across workers; 0 is unpaced")
	f.StringVar(&loadOpts.redisAddr, "redis-addr", "", "Redis address, or \"miniredis\"; empty uses the memory backend")
	f.StringVar(&loadOpts.algorithm, "algorithm", "sliding_window", "Rate limit algorithm")
	f.Uint64Var(&loadOpts.maxRequests, "max-requests", 50, "Rate limit capacity per caller")
	f.DurationVar(&loadOpts.window, "window", time.Minute, "Rate limit window")
	rootCmd.AddCommand(loadtestCmd)
}

func runLoadtest(cmd *cobra.Command, _ []string) error {
	if loadOpts.callers <= 0 || loadOpts.concurrency <= 0 || loadOpts.ops <= 0 {
		return fmt.Errorf("callers, concurrency and ops must be > 0")
	}
	algorithm, err := goGuard.ParseAlgorithm(loadOpts.algorithm)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg := goGuard.DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	b := goGuard.New().WithMembers(map[string][]string{"loadtest": {goGuard.RoleConfigurator}})
	if loadOpts.redisAddr != "" {
		client, closeRedis, err := dialRedis(loadOpts.redisAddr)
		if err != nil {
			return err
		}
		defer closeRedis()
		cfg.RateLimit.Backend = goGuard.BackendRedis
		b.WithRedis(client)
		fmt.Fprintf(out, "using redis at %s\n", loadOpts.redisAddr)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	op := goGuard.OperationIDFromName("loadtest")
	if err := engine.ConfigureOperation(ctx, "loadtest", op, true, false); err != nil {
		return err
	}
	err = engine.ConfigureRateLimit(ctx, "loadtest", op, goGuard.RateLimitConfig{
		Algorithm:       algorithm,
		MaxRequests:     loadOpts.maxRequests,
		Window:          loadOpts.window,
		RefillPerSecond: float64(loadOpts.maxRequests) / loadOpts.window.Seconds(),
		Active:          true,
	})
	if err != nil {
		return err
	}

	var pacer *rate.Limiter
	if loadOpts.qps > 0 {
		pacer = rate.NewLimiter(rate.Limit(loadOpts.qps), loadOpts.concurrency)
	}

	stats := runAuthorizePhase(ctx, engine, op, pacer, loadOpts.callers, loadOpts.ops, loadOpts.concurrency)

	snap := engine.MetricsSnapshot()
	fmt.Fprintln(out, "---- results ----")
	fmt.Fprintln(out, stats.String("authorize"))
	fmt.Fprintf(out, "allowed=%d rate_limited=%d unavailable=%d\n",
		snap.Counters[goGuard.MetricAuthorizeAllowed],
		snap.Counters[goGuard.MetricDenyRateLimited],
		snap.Counters[goGuard.MetricDenyRateLimitUnavailable],
	)
	return nil
}

func runAuthorizePhase(ctx context.Context, engine *goGuard.Engine, op goGuard.OperationID, pacer *rate.Limiter, callers, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		denied    int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				if pacer != nil {
					if err := pacer.Wait(ctx); err != nil {
						return
					}
				}
				caller := fmt.Sprintf("caller-%d", r.Intn(callers))
				t0 := time.Now()
				d, err := engine.Authorize(ctx, caller, op, false)
				elapsed := time.Since(t0)
				switch {
				case err != nil:
					atomic.AddInt64(&failures, 1)
				case !d.Allowed:
					atomic.AddInt64(&denied, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	stats := computeStats(time.Since(start), latencies, failures)
	stats.denied = denied
	return stats
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	denied   int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	s := phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		s.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return s
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func (s phaseStats) String(name string) string {
	return fmt.Sprintf("%s: ops=%d denied=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		name,
		s.ops,
		s.denied,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
