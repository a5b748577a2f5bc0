// Command dashauth-loadtest measures engine throughput against the in-memory
// credential store: a password login phase followed by a scoped token
// issuance phase, each reporting percentile latencies.
//
// Run:
//
//	go run ./cmd/dashauth-loadtest -accounts 10000 -ops 100000 -concurrency 128
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dashauth "github.com/dashauth/dashauth"
	"github.com/dashauth/dashauth/claims"
	"github.com/dashauth/dashauth/memstore"
	"github.com/dashauth/dashauth/password"
)

const seedPassword = "loadtest-password-1"

type seededAccount struct {
	userID string
	email  string
}

func main() {
	var (
		accounts    = flag.Int("accounts", 10000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (login + token)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	// Cheap argon2 parameters: the run should measure engine overhead, not
	// hashing cost.
	store, err := memstore.New(memstore.Config{
		Issuer: "dashauth-loadtest",
		Password: password.Config{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   16,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "memstore init: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	seeded, err := seedAccounts(ctx, store, *accounts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	cfg := dashauth.DefaultConfig()
	cfg.Token.SecurityKey = []byte("loadtest-signing-key-0123456789ab")
	cfg.Token.ClaimsIssuer = "dashauth-loadtest"
	cfg.Metrics.Enabled = true

	engine, err := dashauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithClaimsRepository(staticClaims{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	loginStats := runLoginPhase(ctx, engine, seeded, *ops, *concurrency)
	tokenStats := runTokenPhase(ctx, engine, seeded, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("token", tokenStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("counters: login_success=%d login_failure=%d tokens_issued=%d\n",
		snap.Counters[dashauth.MetricLoginSuccess],
		snap.Counters[dashauth.MetricLoginFailure],
		snap.Counters[dashauth.MetricTokenIssued],
	)
}

func seedAccounts(ctx context.Context, store *memstore.Store, count int) ([]seededAccount, error) {
	seeded := make([]seededAccount, 0, count)
	for i := 0; i < count; i++ {
		email := fmt.Sprintf("user%d@loadtest.example.com", i)
		identity, result, err := store.CreateUser(ctx, email, email)
		if err != nil {
			return nil, err
		}
		if !result.Succeeded {
			return nil, fmt.Errorf("create %s: %v", email, result.Errors)
		}
		if result, err = store.AddPassword(ctx, identity.ID, seedPassword); err != nil {
			return nil, err
		}
		if !result.Succeeded {
			return nil, fmt.Errorf("password %s: %v", email, result.Errors)
		}
		seeded = append(seeded, seededAccount{userID: identity.ID, email: email})
	}
	return seeded, nil
}

func runLoginPhase(ctx context.Context, engine *dashauth.Engine, seeded []seededAccount, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, func(r *rand.Rand) error {
		account := seeded[r.Intn(len(seeded))]
		req, findings := dashauth.NewLoginRequest(account.email, seedPassword, false)
		if !findings.Valid() {
			return fmt.Errorf("request invalid: %v", findings.Messages())
		}
		status, err := engine.Login(ctx, req)
		if err != nil {
			return err
		}
		if !status.Valid() {
			return fmt.Errorf("login rejected: %v", status.Findings().Messages())
		}
		return nil
	})
}

func runTokenPhase(ctx context.Context, engine *dashauth.Engine, seeded []seededAccount, ops, concurrency int) phaseStats {
	scopeID := uuid.New()
	return runPhase(ops, concurrency, func(r *rand.Rand) error {
		account := seeded[r.Intn(len(seeded))]
		principal, err := engine.ComposePrincipal(ctx, account.userID, account.email)
		if err != nil {
			return err
		}
		_, err = engine.CreateScopedToken(ctx, principal, scopeID)
		return err
	})
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
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
		return phaseStats{total: total}
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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

// staticClaims gives every account the same two claims so token payloads
// carry a realistic partition mix.
type staticClaims struct{}

func (staticClaims) ReadUserClaims(_ context.Context, scope, _ string) ([]claims.Claim, error) {
	switch scope {
	case claims.ScopeDashboard:
		return []claims.Claim{{Type: "role", Value: "admin"}}, nil
	case claims.ScopeApplicationGlobal:
		return []claims.Claim{{Type: "plan", Value: "pro"}}, nil
	default:
		return nil, nil
	}
}
