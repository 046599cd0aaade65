package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/resumeauth"
	"github.com/MrEthical07/resumeauth/directory/memory"
	"github.com/MrEthical07/resumeauth/provider"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
}

func newBenchCommand() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure token verification and refresh rotation against Redis",
		Long: "Seeds signed-in users against an in-memory identity provider, then runs a " +
			"verify phase and a refresh phase. Uses miniredis unless --redis-addr or REDIS_ADDR is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return fmt.Errorf("users, concurrency and ops must be > 0")
			}
			if opts.redisAddr == "" {
				opts.redisAddr = os.Getenv("REDIS_ADDR")
			}
			return runBench(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.users, "users", 1000, "Number of users to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "Number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "Operations per phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address")
	return cmd
}

// benchUser is one signed-in user. mu serializes rotation of its refresh chain.
type benchUser struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func runBench(ctx context.Context, opts benchOptions, out io.Writer) error {
	addr := opts.redisAddr
	var rdb *redis.Client
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	rdb = redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	cfg := resumeauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(fmt.Sprintf("bench-secret-%032d", time.Now().UnixNano()))
	cfg.Session.RedisPrefix = "rsbench"
	cfg.Metrics.Enabled = false

	gateway := provider.NewMemoryGateway()
	engine, err := resumeauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithGateway(gateway).
		WithDirectory(memory.New()).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	users := make([]benchUser, opts.users)
	fmt.Fprintf(out, "seeding %d users...\n", opts.users)
	startSeed := time.Now()
	for i := range users {
		email := fmt.Sprintf("bench-%d@example.com", i)
		const password = "bench-password-123"
		if _, err := engine.Register(ctx, resumeauth.CreateAccountInput{Email: email, Password: password}); err != nil {
			return fmt.Errorf("register %s: %w", email, err)
		}
		gateway.ConfirmEmail(email)
		res, err := engine.Authenticate(ctx, resumeauth.Credentials{Email: email, Password: password}, nil)
		if err != nil {
			return fmt.Errorf("sign in %s: %w", email, err)
		}
		users[i].access = res.Tokens.AccessToken
		users[i].refresh = res.Tokens.RefreshToken
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verify := runPhase(opts, 7919, func(r *rand.Rand) error {
		u := &users[r.Intn(len(users))]
		u.mu.Lock()
		token := u.access
		u.mu.Unlock()
		_, err := engine.VerifyAccess(ctx, token)
		return err
	})
	refresh := runPhase(opts, 6151, func(r *rand.Rand) error {
		u := &users[r.Intn(len(users))]
		u.mu.Lock()
		defer u.mu.Unlock()
		pair, err := engine.Refresh(ctx, u.refresh)
		if err != nil {
			return err
		}
		u.access, u.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "verify", verify)
	printStats(out, "refresh", refresh)
	return nil
}

func runPhase(opts benchOptions, seed int64, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > opts.ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

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
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
