package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const stateNonceSize = 24

// StateNonce identifies one pending federated sign-in round trip. It is
// handed to the provider as the OAuth state parameter and must match on
// callback.
type StateNonce [stateNonceSize]byte

func NewStateNonce() (StateNonce, error) {
	var n StateNonce
	_, err := rand.Read(n[:])
	return n, err
}

func (n StateNonce) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(n[:])
}

func ParseStateNonce(s string) (StateNonce, error) {
	var n StateNonce

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return n, err
	}
	if len(raw) != len(n) {
		return n, errors.New("invalid state nonce size")
	}

	copy(n[:], raw)
	return n, nil
}
