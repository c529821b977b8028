package store

import (
	"context"
	"errors"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the gateway's local data access interface. Concrete drivers
// (sqlite today) implement it. Only browser-session state lives here; all
// ticketing data stays in the hosted backend.
type Store interface {
	Sessions() Sessions

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Sessions persists browser sessions so sign-ins survive gateway restarts.
// Rows are keyed by the hash of the session cookie token; the raw token
// never touches disk.
type Sessions interface {
	// Create stores a new browser session. A duplicate token hash returns
	// ErrAlreadyExists.
	Create(ctx context.Context, s domain.StoredSession) error

	// GetByTokenHash returns the session for a cookie token hash, or
	// ErrNotFound.
	GetByTokenHash(ctx context.Context, tokenHash string) (domain.StoredSession, error)

	// Touch records activity and the backend's rotated refresh token.
	Touch(ctx context.Context, tokenHash, refreshToken string, at time.Time) error

	// Delete removes a session, e.g. on sign-out. Unknown hashes are a
	// no-op.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteExpired removes every session that expired before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}
