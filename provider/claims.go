package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	flockgate "github.com/flockhq/flockgate"
)

// parseToken verifies an HS256 access token against the project secret and
// extracts the identity claims. The portal role is read from the configured
// role claim and passed through verbatim; tier interpretation is the gate's.
func (c *Client) parseToken(token string) (flockgate.Identity, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return c.cfg.JWTSecret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindSessionExpired, "your session has expired", err)
		}
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindInvalidCredentials, "session token was rejected", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindUnknown, "session token carried no claims", nil)
	}

	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	role, _ := claims[c.cfg.RoleClaim].(string)

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	if sub == "" {
		return flockgate.Identity{}, flockgate.NewAuthError(flockgate.KindUnknown, "session token carried no subject", nil)
	}

	return flockgate.Identity{
		UserID:    sub,
		Email:     email,
		Role:      role,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
