// Package main demonstrates a minimal church-portal integration with
// flockgate.
//
// It starts a local HTTP server on :8080 backed by miniredis (no external
// Redis required) and an in-memory identity provider stub with two seeded
// accounts.
//
// Endpoints:
//
//	POST /auth/login     — JSON {"email":"...", "password":"..."}
//	POST /auth/logout    — clears the session
//	POST /auth/restore   — rebuilds the session from the stored token
//	GET  /auth/session   — current session snapshot
//	GET  /                — public landing page
//	GET  /dashboard       — member area (guarded)
//	GET  /admin           — admin area (guarded)
//
// Run:
//
//	go run ./cmd/flockportal
//
// Then:
//
//	# sign in as the seeded member
//	curl -i -X POST localhost:8080/auth/login \
//	  -H 'Content-Type: application/json' \
//	  -d '{"email":"shepherd@flock.example","password":"pasture"}'
//
//	# member area now passes the guard
//	curl -i localhost:8080/dashboard
//
//	# admin area still redirects to /
//	curl -i localhost:8080/admin
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	flockgate "github.com/flockhq/flockgate"
	"github.com/flockhq/flockgate/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

func main() {
	// ---------- infrastructure ----------
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	// ---------- config + provider seed ----------
	cfg := flockgate.DefaultConfig()
	cfg.ContextID = "flockportal-demo"

	provider := newStubProvider()
	provider.PutAccount(account{
		Identity: flockgate.Identity{
			UserID: "user-1",
			Email:  "shepherd@flock.example",
			Role:   "member",
			Token:  "member-demo-token",
		},
		Password: "pasture",
	})
	provider.PutAccount(account{
		Identity: flockgate.Identity{
			UserID: "user-2",
			Email:  "elder@flock.example",
			Role:   "admin",
			Token:  "admin-demo-token",
		},
		Password: "staff",
	})

	// ---------- build gate ----------
	gate, err := flockgate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(provider).
		WithAuditSink(flockgate.NewJSONWriterSink(log.Writer())).
		Build()
	if err != nil {
		log.Fatal("gate build:", err)
	}
	defer gate.Close()

	// Rebuild a previous run's session at startup, the way a page reload
	// would. A missing token is a clean anonymous start.
	if sess, err := gate.Restore(context.Background()); err != nil {
		log.Println("restore:", err)
	} else if !sess.Anonymous() {
		log.Println("restored session for", sess.Email)
	}

	// ---------- routes ----------
	r := mux.NewRouter()
	r.HandleFunc("/auth/login", loginHandler(gate)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", logoutHandler(gate)).Methods(http.MethodPost)
	r.HandleFunc("/auth/restore", restoreHandler(gate)).Methods(http.MethodPost)
	r.HandleFunc("/auth/session", sessionHandler(gate)).Methods(http.MethodGet)

	// Every page route passes through the guard; denials answer with a
	// redirect to the matched rule's target, never an error page.
	pages := r.PathPrefix("/").Subrouter()
	pages.Use(middleware.Guard(gate))
	pages.HandleFunc("/", pageHandler("Welcome to the Flock portal.")).Methods(http.MethodGet)
	pages.HandleFunc("/login", pageHandler("Sign-in page.")).Methods(http.MethodGet)
	pages.PathPrefix("/dashboard").HandlerFunc(dashboardHandler).Methods(http.MethodGet)
	pages.PathPrefix("/admin").HandlerFunc(pageHandler("Admin console.")).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Println("listening on :8080")
	log.Fatal(srv.ListenAndServe())
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func loginHandler(gate *flockgate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		sess, err := gate.SignIn(withRequestContext(r), body.Email, body.Password)
		if err != nil {
			writeJSON(w, statusForKind(flockgate.KindOf(err)), map[string]string{
				"error": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, sessionView(sess))
	}
}

func logoutHandler(gate *flockgate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gate.SignOut(withRequestContext(r))
		w.WriteHeader(http.StatusNoContent)
	}
}

func restoreHandler(gate *flockgate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := gate.Restore(withRequestContext(r))
		if err != nil {
			writeJSON(w, statusForKind(flockgate.KindOf(err)), map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, sessionView(sess))
	}
}

func sessionHandler(gate *flockgate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sessionView(gate.CurrentSession()))
	}
}

func dashboardHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "welcome back",
		"email":   sess.Email,
		"role":    sess.Role.String(),
	})
}

func pageHandler(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": message})
	}
}

// ---------------------------------------------------------------------------
// Request context helpers
// ---------------------------------------------------------------------------

func withRequestContext(r *http.Request) context.Context {
	ctx := r.Context()

	// Best-effort IP extraction for the local demo.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ctx = flockgate.WithClientIP(ctx, host)
	ctx = flockgate.WithUserAgent(ctx, r.UserAgent())

	return ctx
}

func statusForKind(kind flockgate.ErrorKind) int {
	switch kind {
	case flockgate.KindInvalidCredentials:
		return http.StatusUnauthorized
	case flockgate.KindRateLimited, flockgate.KindBusy:
		return http.StatusTooManyRequests
	case flockgate.KindProviderUnavailable, flockgate.KindNetworkFailure:
		return http.StatusBadGateway
	case flockgate.KindSessionExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func sessionView(sess flockgate.Session) map[string]any {
	if sess.Anonymous() {
		return map[string]any{"authenticated": false}
	}
	return map[string]any{
		"authenticated": true,
		"user_id":       sess.UserID,
		"email":         sess.Email,
		"role":          sess.Role.String(),
		"expires_at":    sess.ExpiresAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ---------------------------------------------------------------------------
// Stub IdentityProvider — in-memory demo accounts.
// Replace with the Supabase-backed provider for a real deployment.
// ---------------------------------------------------------------------------

type account struct {
	Identity flockgate.Identity
	Password string
}

type stubProvider struct {
	mu      sync.RWMutex
	byEmail map[string]account
	byToken map[string]flockgate.Identity
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		byEmail: make(map[string]account),
		byToken: make(map[string]flockgate.Identity),
	}
}

func (p *stubProvider) PutAccount(a account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byEmail[a.Identity.Email] = a
	if a.Identity.Token != "" {
		p.byToken[a.Identity.Token] = a.Identity
	}
}

func (p *stubProvider) VerifyPassword(_ context.Context, email, password string) (flockgate.Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.byEmail[email]
	if !ok || a.Password != password {
		return flockgate.Identity{}, flockgate.NewAuthError(
			flockgate.KindInvalidCredentials, "Invalid login credentials", nil)
	}
	return a.Identity, nil
}

func (p *stubProvider) FederatedAuthURL(state string) string {
	return "https://idp.flock.example/authorize?state=" + state
}

func (p *stubProvider) VerifyFederatedCallback(ctx context.Context, cb flockgate.FederatedCallback) (flockgate.Identity, error) {
	if cb.ErrorCode == "access_denied" {
		return flockgate.Identity{}, flockgate.NewAuthError(
			flockgate.KindCancelled, "sign-in was cancelled", nil)
	}
	return p.VerifyToken(ctx, cb.Token)
}

func (p *stubProvider) VerifyToken(_ context.Context, token string) (flockgate.Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byToken[token]
	if !ok {
		return flockgate.Identity{}, flockgate.NewAuthError(
			flockgate.KindInvalidCredentials, "session token was rejected", nil)
	}
	return id, nil
}
