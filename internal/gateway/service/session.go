package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/domain"
	"github.com/entradalabs/entrada/pkg/backendsdk"
)

// remoteCallTimeout bounds every backend call made on behalf of the session
// manager, so a stalled backend degrades to a network failure instead of a
// hung session.
const remoteCallTimeout = 10 * time.Second

// Snapshot is the session manager's externally visible state at one point
// in time. IsAdmin is never true while Identity is nil.
type Snapshot struct {
	Identity *domain.Identity
	Loading  bool
	IsAdmin  bool
}

type authEvent struct {
	event   backendsdk.AuthChangeEvent
	session *backendsdk.Session

	// barrier, when set, marks a synchronization point instead of a real
	// change; the loop closes it once every earlier event has been applied.
	barrier chan struct{}
}

// SessionManager owns the authenticated identity for one browser session.
// It subscribes to the auth client's state changes and, on every change,
// mirrors the profile into the backend's users table and recomputes the
// admin flag. Change events are processed one at a time in arrival order so
// a sign-out can never interleave with a half-finished sign-in.
type SessionManager struct {
	auth   *backendsdk.Auth
	client *backendsdk.Client
	notify *NotificationStore
	logger *slog.Logger

	mu       sync.RWMutex
	identity *domain.Identity
	loading  bool
	isAdmin  bool
	session  *backendsdk.Session

	events      chan authEvent
	unsubscribe func()
	done        chan struct{}
	closeOnce   sync.Once
}

func NewSessionManager(auth *backendsdk.Auth, client *backendsdk.Client, notify *NotificationStore, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		auth:    auth,
		client:  client,
		notify:  notify,
		logger:  logger,
		loading: true,
		events:  make(chan authEvent, 16),
		done:    make(chan struct{}),
	}
}

// Start resolves the current session, subscribes to further auth state
// changes, and launches the serialized event loop. The initial resolution
// runs inline so callers observe loading=false once Start returns.
func (m *SessionManager) Start(ctx context.Context) {
	go m.loop()

	m.unsubscribe = m.auth.OnAuthStateChange(func(event backendsdk.AuthChangeEvent, session *backendsdk.Session) {
		select {
		case m.events <- authEvent{event: event, session: session}:
		case <-m.done:
		}
	})

	m.handleChange(ctx, backendsdk.EventInitialSession, m.auth.CurrentSession())
}

func (m *SessionManager) loop() {
	for {
		select {
		case ev := <-m.events:
			if ev.barrier != nil {
				close(ev.barrier)
				continue
			}
			m.handleChange(context.Background(), ev.event, ev.session)
		case <-m.done:
			return
		}
	}
}

// handleChange applies one auth state change end to end: identity update,
// best-effort profile mirror, admin recheck, loading clear, then the
// sign-in/sign-out notification.
func (m *SessionManager) handleChange(ctx context.Context, event backendsdk.AuthChangeEvent, session *backendsdk.Session) {
	var identity *domain.Identity
	if session != nil {
		identity = identityFromUser(session.User())
	}

	isAdmin := false
	if identity != nil {
		m.syncProfile(ctx, session, identity)
		isAdmin = m.checkAdmin(ctx, session, identity.ID)
	}

	m.mu.Lock()
	m.identity = identity
	m.session = session
	m.isAdmin = isAdmin
	m.loading = false
	m.mu.Unlock()

	if m.notify == nil {
		return
	}
	switch event {
	case backendsdk.EventSignedIn:
		m.notify.Success("Signed in", "Welcome back", 3*time.Second)
	case backendsdk.EventSignedOut:
		m.notify.Info("Signed out", "You have been signed out", 3*time.Second)
	}
}

// syncProfile mirrors the identity into the users table: created on first
// sign-in, last_login touched afterwards. Failures are logged and swallowed;
// the mirror is best-effort and must never cost the user their session.
func (m *SessionManager) syncProfile(ctx context.Context, session *backendsdk.Session, identity *domain.Identity) {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	var existing struct {
		ID string `json:"id"`
	}
	err := m.client.From("users").Authed(session).
		Select("id").
		Eq("id", identity.ID).
		Single().
		Do(ctx, &existing)

	switch {
	case err == nil:
		touch := map[string]any{"last_login": time.Now().UTC().Format(time.RFC3339)}
		err = m.client.From("users").Authed(session).
			Update(touch).
			Eq("id", identity.ID).
			Do(ctx, nil)
	case backendsdk.IsNotFound(err):
		record := map[string]any{
			"id":             identity.ID,
			"email":          identity.Email,
			"first_name":     identity.FirstName,
			"last_name":      identity.LastName,
			"email_verified": identity.EmailVerified,
			"last_login":     time.Now().UTC().Format(time.RFC3339),
		}
		err = m.client.From("users").Authed(session).
			Insert([]map[string]any{record}).
			Do(ctx, nil)
	}

	if err != nil {
		syncErr := domain.NewError(domain.KindProfileSync, "profile mirror write failed", err)
		m.logger.Warn("profile sync failed", "user_id", identity.ID, "err", syncErr)
	}
}

// checkAdmin looks the identity up in the access-control list. Any failure,
// including the backend being unreachable, yields false: privilege is never
// granted on a failed lookup.
func (m *SessionManager) checkAdmin(ctx context.Context, session *backendsdk.Session, userID string) bool {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	var record struct {
		Role     string `json:"role"`
		IsActive bool   `json:"is_active"`
	}
	err := m.client.From("admin_users").Authed(session).
		Select("role, is_active").
		Eq("user_id", userID).
		Eq("is_active", "true").
		Single().
		Do(ctx, &record)
	if err != nil {
		if !backendsdk.IsNotFound(err) {
			lookupErr := domain.NewError(domain.KindLookup, "admin lookup failed", err)
			m.logger.Warn("admin status check failed, defaulting to non-admin", "user_id", userID, "err", lookupErr)
		}
		return false
	}
	return true
}

// WaitReady blocks until every change event enqueued before the call has
// been fully applied, so a snapshot taken afterwards reflects them.
func (m *SessionManager) WaitReady(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case m.events <- authEvent{barrier: barrier}:
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current session state. The identity pointer is a
// copy; callers cannot mutate manager state through it.
func (m *SessionManager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{Loading: m.loading, IsAdmin: m.isAdmin}
	if m.identity != nil {
		identity := *m.identity
		snap.Identity = &identity
	}
	return snap
}

// Session returns the live backend session, or nil when signed out.
func (m *SessionManager) Session() *backendsdk.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Register creates a new account. The confirmation password is checked
// locally first; a mismatch never reaches the backend. A nil returned
// session means the backend wants email confirmation before sign-in.
func (m *SessionManager) Register(ctx context.Context, email, password, confirmPassword string, metadata map[string]any) error {
	if password != confirmPassword {
		err := domain.NewError(domain.KindValidation, "Passwords do not match", nil)
		m.notifyError("Registration failed", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	session, err := m.auth.SignUp(ctx, email, password, metadata)
	if err != nil {
		wrapped := wrapAuthError("registration failed", err)
		m.notifyError("Registration failed", wrapped)
		return wrapped
	}

	if m.notify != nil {
		if session == nil {
			m.notify.Success("Registration successful", "Check your email to confirm your account", DefaultNotificationDuration)
		} else {
			m.notify.Success("Registration successful", "Your account is ready", DefaultNotificationDuration)
		}
	}
	return nil
}

// Authenticate signs in with an email and password. onSuccess, when
// non-nil, runs only after a successful sign-in.
func (m *SessionManager) Authenticate(ctx context.Context, email, password string, onSuccess func()) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	if _, err := m.auth.SignInWithPassword(ctx, email, password); err != nil {
		wrapped := wrapAuthError("sign-in failed", err)
		m.notifyError("Sign-in failed", wrapped)
		return wrapped
	}

	if onSuccess != nil {
		onSuccess()
	}
	return nil
}

// Deauthenticate ends the current session.
func (m *SessionManager) Deauthenticate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	if err := m.auth.SignOut(ctx); err != nil {
		wrapped := wrapAuthError("sign-out failed", err)
		m.notifyError("Sign-out failed", wrapped)
		return wrapped
	}
	return nil
}

// UpdateProfile changes account fields on the auth backend.
func (m *SessionManager) UpdateProfile(ctx context.Context, fields map[string]any) error {
	m.mu.RLock()
	signedIn := m.identity != nil
	m.mu.RUnlock()
	if !signedIn {
		err := domain.NewError(domain.KindAuth, "no user logged in", nil)
		m.notifyError("Profile update failed", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	if _, err := m.auth.UpdateUser(ctx, fields); err != nil {
		wrapped := wrapAuthError("profile update failed", err)
		m.notifyError("Profile update failed", wrapped)
		return wrapped
	}

	if m.notify != nil {
		m.notify.Success("Profile updated", "Your profile has been updated", 3*time.Second)
	}
	return nil
}

// Close unsubscribes from auth state changes and stops the event loop. Safe
// to call more than once and on every teardown path.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		close(m.done)
	})
}

func (m *SessionManager) notifyError(title string, err error) {
	if m.notify == nil {
		return
	}
	m.notify.Error(title, friendlyMessage(err), DefaultNotificationDuration)
}

// wrapAuthError kinds a backend failure: API-reported auth failures become
// KindAuth, everything else is treated as the network misbehaving.
func wrapAuthError(message string, err error) error {
	if apiErr, ok := backendsdk.AsAPIError(err); ok && apiErr.IsAuthFailure() {
		return domain.NewError(domain.KindAuth, apiErr.Description, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindNetwork, "backend timed out", err)
	}
	return domain.NewError(domain.KindNetwork, message, err)
}

func identityFromUser(u backendsdk.User) *domain.Identity {
	identity := &domain.Identity{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.MetadataString("first_name"),
		LastName:      u.MetadataString("last_name"),
		Phone:         u.MetadataString("phone"),
		EmailVerified: u.EmailVerified(),
	}
	if u.LastSignInAt != nil {
		identity.LastLoginAt = *u.LastSignInAt
	}
	return identity
}
