package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"taskfold.org/internal/obs"
)

const (
	// DefaultActivationTTL and DefaultResetTTL bound token lifetimes when no
	// policy is configured.
	DefaultActivationTTL = 24 * time.Hour
	DefaultResetTTL      = time.Hour

	tokenBytes = 32 // 256 bits of entropy per token
)

// Tokens issues and consumes the one-time activation and reset tokens. Only
// the SHA-256 digest of a token is ever stored; the plaintext exists in the
// emailed link alone.
type Tokens struct {
	store         TokenStore
	activationTTL time.Duration
	resetTTL      time.Duration
	now           func() time.Time
}

// TokensOption configures the token service.
type TokensOption func(*Tokens)

func WithActivationTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.activationTTL = ttl
		}
	}
}

func WithResetTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.resetTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokensOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

func NewTokens(store TokenStore, opts ...TokensOption) (*Tokens, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	t := &Tokens{
		store:         store,
		activationTTL: DefaultActivationTTL,
		resetTTL:      DefaultResetTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// HashToken digests a token for storage and lookup. Presented values are
// hashed before they reach the database, keeping plaintext out of storage,
// logs and query plans.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue generates a fresh opaque token for the account and purpose. Any
// prior live token for the same purpose is superseded: at most one token per
// account/purpose is valid at a time.
func (t *Tokens) Issue(ctx context.Context, accountID string, purpose TokenPurpose) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	ttl, err := t.ttlFor(purpose)
	if err != nil {
		return "", err
	}
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	expiresAt := t.now().UTC().Add(ttl)
	if err := t.store.SaveToken(ctx, accountID, purpose, HashToken(token), expiresAt); err != nil {
		return "", err
	}
	obs.TokensIssuedTotal.WithLabelValues(string(purpose)).Inc()
	return token, nil
}

// Peek resolves a token to its account without consuming it, for rendering
// the reset form before the actual submission.
func (t *Tokens) Peek(ctx context.Context, token string, purpose TokenPurpose) (*Account, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	account, err := t.store.FindByToken(ctx, purpose, HashToken(token), t.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	return account, nil
}

// ValidateAndConsume redeems a token exactly once. Expiry check and clear
// happen in one store operation, so two concurrent requests cannot both
// succeed. Wrong, expired and already-consumed tokens are indistinguishable.
func (t *Tokens) ValidateAndConsume(ctx context.Context, token string, purpose TokenPurpose) (string, error) {
	if token == "" {
		obs.TokensConsumedTotal.WithLabelValues(string(purpose), "rejected").Inc()
		return "", ErrInvalidOrExpiredToken
	}
	accountID, err := t.store.ConsumeToken(ctx, purpose, HashToken(token), t.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.TokensConsumedTotal.WithLabelValues(string(purpose), "rejected").Inc()
			return "", ErrInvalidOrExpiredToken
		}
		return "", err
	}
	obs.TokensConsumedTotal.WithLabelValues(string(purpose), "consumed").Inc()
	return accountID, nil
}

func (t *Tokens) ttlFor(purpose TokenPurpose) (time.Duration, error) {
	switch purpose {
	case PurposeActivation:
		return t.activationTTL, nil
	case PurposeReset:
		return t.resetTTL, nil
	default:
		return 0, fmt.Errorf("%w: unknown token purpose %q", ErrInvalidInput, purpose)
	}
}
