package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	flockgate "github.com/flockhq/flockgate"
)

const (
	passwordGrantPath = "/auth/v1/token"
	authorizePath     = "/auth/v1/authorize"

	// cancelledErrorCode is what the provider reports when the user backs
	// out of the consent screen.
	cancelledErrorCode = "access_denied"

	maxErrorBody = 4 << 10
)

// Config holds the connection settings for one hosted auth project.
type Config struct {
	// BaseURL is the project root, e.g. https://abc.supabase.co.
	BaseURL string
	// APIKey is the project's public (anon) API key, sent on every call.
	APIKey string
	// JWTSecret verifies provider-issued HS256 access tokens locally.
	JWTSecret []byte
	// RoleClaim names the token claim carrying the portal role.
	// Defaults to "flock_role".
	RoleClaim string
	// FederatedProvider selects the OAuth backend for federated sign-in.
	// Defaults to "google".
	FederatedProvider string
	// RedirectURL is where the federated flow returns the browser.
	RedirectURL string
	// Timeout bounds each HTTP round trip. Defaults to 10s.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the hosted auth service. It implements
// [flockgate.IdentityProvider].
type Client struct {
	cfg  Config
	http *http.Client
}

// New validates cfg and returns a ready [Client].
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("provider: BaseURL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("provider: invalid BaseURL: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("provider: APIKey required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("provider: JWTSecret required")
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "flock_role"
	}
	if cfg.FederatedProvider == "" {
		cfg.FederatedProvider = "google"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{cfg: cfg, http: httpClient}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
}

func (e errorResponse) message() string {
	switch {
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Msg != "":
		return e.Msg
	case e.Error != "":
		return e.Error
	default:
		return ""
	}
}

// VerifyPassword exchanges an email/password pair for a verified identity
// via the password grant endpoint.
func (c *Client) VerifyPassword(ctx context.Context, email, password string) (flockgate.Identity, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindUnknown, "could not encode request", err)
	}

	endpoint := c.cfg.BaseURL + passwordGrantPath + "?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindUnknown, "could not build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindNetworkFailure, "could not reach the sign-in service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return flockgate.Identity{}, c.classifyStatus(resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&tr); err != nil {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindProviderUnavailable, "sign-in service returned an unreadable response", err)
	}
	if tr.AccessToken == "" {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindProviderUnavailable, "sign-in service returned no token", nil)
	}

	identity, err := c.parseToken(tr.AccessToken)
	if err != nil {
		return flockgate.Identity{}, err
	}
	if identity.Email == "" {
		identity.Email = tr.User.Email
	}
	if identity.UserID == "" {
		identity.UserID = tr.User.ID
	}
	return identity, nil
}

// FederatedAuthURL returns the authorize URL that begins the external
// redirect flow, carrying the gate's state nonce.
func (c *Client) FederatedAuthURL(state string) string {
	q := url.Values{}
	q.Set("provider", c.cfg.FederatedProvider)
	q.Set("state", state)
	if c.cfg.RedirectURL != "" {
		q.Set("redirect_to", c.cfg.RedirectURL)
	}
	return c.cfg.BaseURL + authorizePath + "?" + q.Encode()
}

// VerifyFederatedCallback validates the completion event of a federated
// flow. User cancellation maps to KindCancelled; any other provider error
// code is surfaced as unknown with the provider's text.
func (c *Client) VerifyFederatedCallback(ctx context.Context, cb flockgate.FederatedCallback) (flockgate.Identity, error) {
	if cb.ErrorCode == cancelledErrorCode {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindCancelled, "sign-in was cancelled", nil)
	}
	if cb.ErrorCode != "" {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindUnknown, "sign-in failed: "+cb.ErrorCode, nil)
	}
	if cb.Token == "" {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindUnknown, "callback carried no token", nil)
	}
	return c.parseToken(cb.Token)
}

// VerifyToken validates a previously issued continuity token. Verification
// is local — signature and expiry check against the project secret — so
// session restore costs no provider round trip.
func (c *Client) VerifyToken(ctx context.Context, token string) (flockgate.Identity, error) {
	return c.parseToken(token)
}

func (c *Client) classifyStatus(resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&er)

	msg := er.message()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "email or password is incorrect"
		}
		return flockgate.NewAuthError(flockgate.KindInvalidCredentials, msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		if msg == "" {
			msg = "too many attempts, try again later"
		}
		return flockgate.NewAuthError(flockgate.KindRateLimited, msg, nil)
	case resp.StatusCode >= 500:
		if msg == "" {
			msg = "the sign-in service is temporarily unavailable"
		}
		return flockgate.NewAuthError(flockgate.KindProviderUnavailable, msg, nil)
	default:
		if msg == "" {
			msg = fmt.Sprintf("unexpected response %d", resp.StatusCode)
		}
		return flockgate.NewAuthError(flockgate.KindUnknown, msg, nil)
	}
}
