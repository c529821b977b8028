package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/domain"
	"github.com/entradalabs/entrada/internal/gateway/store"
	"github.com/entradalabs/entrada/pkg/backendsdk"
	"github.com/entradalabs/entrada/pkg/cryptox"
)

// DefaultSessionTTL is how long a browser session survives without a fresh
// sign-in.
const DefaultSessionTTL = 30 * 24 * time.Hour

// ErrSessionUnknown is returned when a cookie token resolves to no live or
// resumable session.
var ErrSessionUnknown = errors.New("session unknown or expired")

type registryEntry struct {
	manager     *SessionManager
	unsubscribe func()
}

// Registry maps browser-session cookie tokens to their session managers.
// Sessions are persisted by refresh token so a sign-in survives a gateway
// restart; only the token's fingerprint ever reaches disk.
type Registry struct {
	client   *backendsdk.Client
	sessions store.Sessions
	notify   *NotificationStore
	logger   *slog.Logger
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool
}

func NewRegistry(client *backendsdk.Client, sessions store.Sessions, notify *NotificationStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		client:   client,
		sessions: sessions,
		notify:   notify,
		logger:   logger,
		ttl:      DefaultSessionTTL,
		entries:  make(map[string]*registryEntry),
	}
}

// Authenticate signs in against the backend and, on success, mints a new
// browser session. The returned token goes into the session cookie; it is
// never stored server-side in raw form.
func (r *Registry) Authenticate(ctx context.Context, email, password string) (string, *SessionManager, error) {
	manager := r.newManager(ctx)

	if err := manager.Authenticate(ctx, email, password, nil); err != nil {
		manager.Close()
		return "", nil, err
	}
	if err := manager.WaitReady(ctx); err != nil {
		manager.Close()
		return "", nil, err
	}

	token, err := r.adopt(ctx, manager)
	if err != nil {
		manager.Close()
		return "", nil, err
	}
	return token, manager, nil
}

// Register creates an account. When the backend signs the new account in
// immediately a browser session is minted; when email confirmation is
// pending the token is empty and no session exists yet.
func (r *Registry) Register(ctx context.Context, email, password, confirmPassword string, metadata map[string]any) (string, *SessionManager, error) {
	manager := r.newManager(ctx)

	if err := manager.Register(ctx, email, password, confirmPassword, metadata); err != nil {
		manager.Close()
		return "", nil, err
	}

	if manager.Session() == nil && manager.auth.CurrentSession() == nil {
		// Confirmation pending; the manager has nothing to own.
		manager.Close()
		return "", nil, nil
	}
	if err := manager.WaitReady(ctx); err != nil {
		manager.Close()
		return "", nil, err
	}

	token, err := r.adopt(ctx, manager)
	if err != nil {
		manager.Close()
		return "", nil, err
	}
	return token, manager, nil
}

// Resolve returns the session manager for a cookie token, resuming from the
// persisted refresh token when the gateway has restarted since sign-in. A
// token that cannot be resolved or resumed yields ErrSessionUnknown.
func (r *Registry) Resolve(ctx context.Context, token string) (*SessionManager, error) {
	fingerprint := cryptox.FingerprintToken(token)

	r.mu.Lock()
	entry, ok := r.entries[fingerprint]
	r.mu.Unlock()
	if ok {
		return entry.manager, nil
	}

	stored, err := r.sessions.GetByTokenHash(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionUnknown
		}
		return nil, err
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = r.sessions.Delete(ctx, fingerprint)
		return nil, ErrSessionUnknown
	}

	auth := r.client.Auth()
	session, err := auth.ResumeSession(ctx, stored.RefreshToken)
	if err != nil {
		// A rejected refresh token is dead for good; drop the row so the
		// next request goes straight to sign-in.
		if apiErr, ok := backendsdk.AsAPIError(err); ok && apiErr.IsAuthFailure() {
			_ = r.sessions.Delete(ctx, fingerprint)
			return nil, ErrSessionUnknown
		}
		return nil, domain.NewError(domain.KindNetwork, "session resume failed", err)
	}

	manager := NewSessionManager(auth, r.client, r.notify, r.logger)
	manager.Start(ctx)

	if err := r.sessions.Touch(ctx, fingerprint, session.RefreshToken(), time.Now()); err != nil {
		r.logger.Warn("session touch failed", "err", err)
	}

	return r.track(fingerprint, manager, auth), nil
}

// Revoke signs the session out and forgets it everywhere. Unknown tokens
// are a no-op.
func (r *Registry) Revoke(ctx context.Context, token string) error {
	fingerprint := cryptox.FingerprintToken(token)

	r.mu.Lock()
	entry, ok := r.entries[fingerprint]
	delete(r.entries, fingerprint)
	r.mu.Unlock()

	if err := r.sessions.Delete(ctx, fingerprint); err != nil {
		r.logger.Warn("session row delete failed", "err", err)
	}

	if !ok {
		return nil
	}
	defer func() {
		entry.unsubscribe()
		entry.manager.Close()
	}()

	return entry.manager.Deauthenticate(ctx)
}

// Sweep drops expired session rows. Run it periodically.
func (r *Registry) Sweep(ctx context.Context) error {
	return r.sessions.DeleteExpired(ctx, time.Now())
}

// Close tears down every live manager. The persisted rows survive for
// resumption after restart.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.closed = true
	r.mu.Unlock()

	for _, entry := range entries {
		entry.unsubscribe()
		entry.manager.Close()
	}
}

func (r *Registry) newManager(ctx context.Context) *SessionManager {
	manager := NewSessionManager(r.client.Auth(), r.client, r.notify, r.logger)
	manager.Start(ctx)
	return manager
}

// adopt mints a cookie token for a freshly signed-in manager and persists
// the session for resumption.
func (r *Registry) adopt(ctx context.Context, manager *SessionManager) (string, error) {
	session := manager.Session()
	if session == nil {
		// Sign-in succeeded but the change event has not landed yet; the
		// auth client still knows the live session.
		session = manager.auth.CurrentSession()
	}
	if session == nil {
		return "", domain.NewError(domain.KindNetwork, "no session after sign-in", nil)
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	fingerprint := cryptox.FingerprintToken(token)

	user := session.User()
	now := time.Now()
	stored := domain.StoredSession{
		TokenHash:    fingerprint,
		UserID:       user.ID,
		Email:        user.Email,
		RefreshToken: session.RefreshToken(),
		CreatedAt:    now,
		LastSeenAt:   now,
		ExpiresAt:    now.Add(r.ttl),
	}
	if err := r.sessions.Create(ctx, stored); err != nil {
		return "", err
	}

	r.track(fingerprint, manager, manager.auth)
	return token, nil
}

// track registers the manager under its fingerprint and follows token
// refreshes so the persisted refresh token stays current.
func (r *Registry) track(fingerprint string, manager *SessionManager, auth *backendsdk.Auth) *SessionManager {
	unsubscribe := auth.OnAuthStateChange(func(event backendsdk.AuthChangeEvent, session *backendsdk.Session) {
		if event != backendsdk.EventTokenRefreshed || session == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), remoteCallTimeout)
		defer cancel()
		if err := r.sessions.Touch(ctx, fingerprint, session.RefreshToken(), time.Now()); err != nil {
			r.logger.Warn("refresh token persist failed", "err", err)
		}
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		unsubscribe()
		manager.Close()
		return manager
	}
	if existing, ok := r.entries[fingerprint]; ok {
		// Lost a resolve race; keep the first manager.
		unsubscribe()
		manager.Close()
		return existing.manager
	}
	r.entries[fingerprint] = &registryEntry{manager: manager, unsubscribe: unsubscribe}
	return manager
}
