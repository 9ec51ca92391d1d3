package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"taskfold.org/internal/auth"
	"taskfold.org/internal/obs"
)

const idBytes = 32

// Manager creates, reads and destroys sessions. Creating a session always
// allocates a fresh identifier and invalidates the caller's previous one, so
// a pre-set identifier never survives a privilege change (session fixation).
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	m := &Manager{store: store, ttl: 12 * time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// HashID digests a session identifier for use as the storage key. The
// plaintext identifier lives only in the cookie; a leaked store cannot be
// replayed against live sessions.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// Create allocates a new session for the account, minting a fresh CSRF
// token into the payload. previousID, when non-empty, is destroyed first:
// login and activation regenerate the session identity rather than reuse it.
func (m *Manager) Create(ctx context.Context, profile auth.Profile, roles []auth.Role, perms auth.PermissionSet, previousID string) (string, Payload, error) {
	if previousID != "" {
		if err := m.store.Delete(ctx, HashID(previousID)); err == nil {
			obs.SessionsActive.Dec()
		}
	}

	raw := make([]byte, idBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", Payload{}, fmt.Errorf("generate session id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(raw)

	csrfToken, err := MintCSRFToken()
	if err != nil {
		return "", Payload{}, err
	}

	now := m.now().UTC()
	payload := Payload{
		Profile:     profile,
		Roles:       roles,
		Permissions: perms,
		CSRFToken:   csrfToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, HashID(id), payload); err != nil {
		return "", Payload{}, err
	}
	obs.SessionsActive.Inc()
	return id, payload, nil
}

// Read returns the payload for a session identifier, or ErrNotFound.
func (m *Manager) Read(ctx context.Context, id string) (Payload, error) {
	if id == "" {
		return Payload{}, ErrNotFound
	}
	return m.store.Get(ctx, HashID(id))
}

// Destroy invalidates the session. Unknown identifiers are not an error:
// logout of a dead session is a no-op.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := m.store.Delete(ctx, HashID(id))
	if err == nil {
		obs.SessionsActive.Dec()
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// PushFlash stores a read-once message in the session. Session payload
// writes are last-write-wins; flashes are the only mutation after login.
func (m *Manager) PushFlash(ctx context.Context, id string, kind FlashKind, message string) error {
	payload, err := m.Read(ctx, id)
	if err != nil {
		return err
	}
	if payload.Flashes == nil {
		payload.Flashes = Flashes{}
	}
	payload.Flashes[kind] = message
	return m.store.Put(ctx, HashID(id), payload)
}

// DrainFlashes returns and clears the flash slots. Draining is destructive:
// each message is delivered exactly once.
func (m *Manager) DrainFlashes(ctx context.Context, id string) (Flashes, error) {
	payload, err := m.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(payload.Flashes) == 0 {
		return Flashes{}, nil
	}
	drained := payload.Flashes
	payload.Flashes = nil
	if err := m.store.Put(ctx, HashID(id), payload); err != nil {
		return nil, err
	}
	return drained, nil
}
