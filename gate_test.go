package flockgate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeProvider is a scriptable in-memory identity provider. Accounts are
// keyed by email; every account accepts the password "correctpw".
type fakeProvider struct {
	mu         sync.Mutex
	accounts   map[string]Identity
	tokens     map[string]Identity
	verifyErr  error
	tokenErr   error
	callbackID *Identity
	release    chan struct{}
	calls      int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: map[string]Identity{},
		tokens:   map[string]Identity{},
	}
}

func (p *fakeProvider) addAccount(id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[id.Email] = id
	if id.Token != "" {
		p.tokens[id.Token] = id
	}
}

func (p *fakeProvider) VerifyPassword(ctx context.Context, email, password string) (Identity, error) {
	p.mu.Lock()
	p.calls++
	release := p.release
	verifyErr := p.verifyErr
	id, ok := p.accounts[email]
	p.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		}
	}
	if verifyErr != nil {
		return Identity{}, verifyErr
	}
	if !ok || password != "correctpw" {
		return Identity{}, NewAuthError(KindInvalidCredentials, "Invalid login credentials", nil)
	}
	return id, nil
}

func (p *fakeProvider) FederatedAuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *fakeProvider) VerifyFederatedCallback(ctx context.Context, cb FederatedCallback) (Identity, error) {
	if cb.ErrorCode == "access_denied" {
		return Identity{}, NewAuthError(KindCancelled, "sign-in was cancelled", nil)
	}
	return p.VerifyToken(ctx, cb.Token)
}

func (p *fakeProvider) VerifyToken(ctx context.Context, token string) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokenErr != nil {
		return Identity{}, p.tokenErr
	}
	id, ok := p.tokens[token]
	if !ok {
		return Identity{}, NewAuthError(KindInvalidCredentials, "session token was rejected", nil)
	}
	return id, nil
}

func memberIdentity() Identity {
	return Identity{
		UserID:    "u-member",
		Email:     "member@example.com",
		Role:      "member",
		Token:     "member-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func adminIdentity() Identity {
	return Identity{
		UserID:    "u-admin",
		Email:     "admin@example.com",
		Role:      "admin",
		Token:     "admin-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

type gateFixture struct {
	gate     *Gate
	provider *fakeProvider
	redis    *redis.Client
	mini     *miniredis.Miniredis
}

func newTestGate(t *testing.T, mutate func(*Config)) *gateFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	provider := newFakeProvider()
	provider.addAccount(memberIdentity())
	provider.addAccount(adminIdentity())

	cfg := DefaultConfig()
	cfg.ContextID = "test-ctx"
	if mutate != nil {
		mutate(&cfg)
	}

	gate, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(gate.Close)

	return &gateFixture{gate: gate, provider: provider, redis: rdb, mini: mr}
}

func mustSignIn(t *testing.T, f *gateFixture, email string) Session {
	t.Helper()

	sess, err := f.gate.SignIn(context.Background(), email, "correctpw")
	if err != nil {
		t.Fatalf("SignIn(%s) failed: %v", email, err)
	}
	return sess
}
