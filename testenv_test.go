package resumeauth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/resumeauth"
	"github.com/MrEthical07/resumeauth/directory/memory"
	"github.com/MrEthical07/resumeauth/provider"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

type testEnv struct {
	engine   *resumeauth.Engine
	gateway  *provider.MemoryGateway
	dir      *memory.Directory
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	reporter *captureReporter
	sink     interface {
		Events() <-chan resumeauth.AuditEvent
	}
}

type captureReporter struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (r *captureReporter) CaptureError(_ context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *captureReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func testConfig() resumeauth.Config {
	cfg := resumeauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Compensation.MaxRetries = 1
	cfg.Compensation.BaseBackoff = time.Millisecond
	cfg.Compensation.Timeout = time.Second
	cfg.PasswordReset.RedirectURL = "https://app.example.com/reset"
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*resumeauth.Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		gateway:  provider.NewMemoryGateway(),
		dir:      memory.New(),
		mr:       mr,
		rdb:      rdb,
		reporter: &captureReporter{},
	}

	b := resumeauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithGateway(env.gateway).
		WithDirectory(env.dir).
		WithErrorReporter(env.reporter)
	if cfg.Audit.Enabled {
		sink := resumeauth.NewChannelSink(64)
		env.sink = sink
		b = b.WithAuditSink(sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// register creates an account and returns its profile.
func (env *testEnv) register(t *testing.T, email string) *resumeauth.Profile {
	t.Helper()

	res, err := env.engine.Register(context.Background(), resumeauth.CreateAccountInput{
		Email:     email,
		Password:  testPassword,
		FirstName: "Alice",
		LastName:  "Liddell",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res.Profile
}

// signIn registers a confirmed account and signs it in.
func (env *testEnv) signIn(t *testing.T, email string) *resumeauth.AuthResult {
	t.Helper()

	env.register(t, email)
	env.gateway.ConfirmEmail(email)

	res, err := env.engine.Authenticate(context.Background(), resumeauth.Credentials{Email: email, Password: testPassword}, nil)
	if err != nil {
		t.Fatalf("Authenticate(%s) failed: %v", email, err)
	}
	return res
}

func (env *testEnv) nextEvent(t *testing.T, eventType string) resumeauth.AuditEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-env.sink.Events():
			if ev.Type == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s audit event received", eventType)
		}
	}
}
