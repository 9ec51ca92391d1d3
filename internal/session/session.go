// Package session owns the server-side session record: the profile and
// permission snapshot taken at login, the per-session CSRF token, and the
// read-once flash slots. The client holds only an opaque identifier in a
// cookie; the identifier is hashed before it is used as a storage key.
package session

import (
	"context"
	"errors"
	"time"

	"taskfold.org/internal/auth"
)

// ErrNotFound covers a missing, expired or already-destroyed session.
var ErrNotFound = errors.New("session: not found")

// FlashKind selects one of the read-once message slots.
type FlashKind string

const (
	FlashError   FlashKind = "error"
	FlashSuccess FlashKind = "success"
	FlashInfo    FlashKind = "info"
)

// Flashes holds at most one message per kind.
type Flashes map[FlashKind]string

// Payload is everything stored server-side for a session. Permissions are
// snapshotted here at login/activation and not re-derived per request: a
// mid-session role change by an administrator takes effect at next login.
// Concurrent requests for the same session are last-write-wins.
type Payload struct {
	Profile     auth.Profile       `json:"profile"`
	Roles       []auth.Role        `json:"roles"`
	Permissions auth.PermissionSet `json:"permissions"`
	CSRFToken   string             `json:"csrf_token"`
	Flashes     Flashes            `json:"flashes,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// Store persists session payloads keyed by the hashed identifier. The
// in-memory implementation backs tests; production uses the pg store.
type Store interface {
	// Put inserts or replaces the payload for a key.
	Put(ctx context.Context, keyHash string, payload Payload) error

	// Get returns the payload, or ErrNotFound if the key is unknown or the
	// payload has expired.
	Get(ctx context.Context, keyHash string) (Payload, error)

	// Delete removes the payload; ErrNotFound if nothing was stored.
	Delete(ctx context.Context, keyHash string) error
}
