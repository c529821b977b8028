package backendsdk

import (
	"context"
	"net/http"
	"sync"
)

// AuthChangeEvent tags a session lifecycle transition.
type AuthChangeEvent string

const (
	// EventInitialSession fires when an existing session is resumed at
	// startup. It is not a sign-in: user-facing notifications are skipped.
	EventInitialSession AuthChangeEvent = "INITIAL_SESSION"
	EventSignedIn       AuthChangeEvent = "SIGNED_IN"
	EventSignedOut      AuthChangeEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthChangeEvent = "USER_UPDATED"
)

// AuthChangeHandler receives auth state transitions. The session is nil for
// EventSignedOut.
type AuthChangeHandler func(event AuthChangeEvent, session *Session)

// Auth owns at most one authenticated session and the listeners observing
// its lifecycle. Events are emitted in the order the transitions happen;
// each emission completes before the next one starts.
type Auth struct {
	client *Client

	mu        sync.Mutex
	session   *Session
	listeners map[int]AuthChangeHandler
	nextID    int
}

// CurrentSession returns the active session, or nil when signed out.
func (a *Auth) CurrentSession() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// OnAuthStateChange registers a listener for session transitions and returns
// its unsubscribe function. Unsubscribing is idempotent.
func (a *Auth) OnAuthStateChange(handler AuthChangeHandler) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = handler
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// emit delivers an event to all listeners. The listener map is copied under
// the lock; handlers run without it so they may call back into Auth.
func (a *Auth) emit(event AuthChangeEvent, session *Session) {
	a.mu.Lock()
	handlers := make([]AuthChangeHandler, 0, len(a.listeners))
	for _, h := range a.listeners {
		handlers = append(handlers, h)
	}
	a.mu.Unlock()

	for _, h := range handlers {
		h(event, session)
	}
}

// SignUp registers a new account. Depending on backend configuration the
// response is either a full session (auto-confirm) or a bare user pending
// email confirmation; only the former signs the caller in.
func (a *Auth) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var resp signUpResponse
	if err := a.client.doJSON(ctx, http.MethodPost, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}

	session := newSession(a, &resp.tokenResponse)
	a.setSession(session)
	a.emit(EventSignedIn, session)
	return session, nil
}

// SignInWithPassword authenticates with email and password and makes the
// resulting session current.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var resp tokenResponse
	err := a.client.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp)
	if err != nil {
		return nil, err
	}

	session := newSession(a, &resp)
	a.setSession(session)
	a.emit(EventSignedIn, session)
	return session, nil
}

// ResumeSession re-establishes a session from a stored refresh token, e.g.
// after a gateway restart. Listeners observe it as the initial session, not
// as a fresh sign-in.
func (a *Auth) ResumeSession(ctx context.Context, refreshToken string) (*Session, error) {
	resp, err := a.refreshGrant(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	session := newSession(a, resp)
	a.setSession(session)
	a.emit(EventInitialSession, session)
	return session, nil
}

// SignOut revokes the current session server-side and clears it locally.
// The local session is dropped even if revocation fails; a stolen refresh
// token outliving the backend call is the backend's problem to bound.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	session := a.session
	a.session = nil
	a.mu.Unlock()

	if session == nil {
		return &APIError{
			StatusCode:  http.StatusUnauthorized,
			Code:        ErrorCodeSessionMissing,
			Description: "no active session to sign out",
		}
	}

	err := a.client.doJSON(ctx, http.MethodPost, "/auth/v1/logout", session.AccessToken(), nil, nil)
	a.emit(EventSignedOut, nil)
	return err
}

// UpdateUser updates account attributes (email, password, metadata) for the
// current session and emits EventUserUpdated.
func (a *Auth) UpdateUser(ctx context.Context, fields map[string]any) (User, error) {
	session := a.CurrentSession()
	if session == nil {
		return User{}, &APIError{
			StatusCode:  http.StatusUnauthorized,
			Code:        ErrorCodeSessionMissing,
			Description: "no active session",
		}
	}

	token, err := session.Token(ctx)
	if err != nil {
		return User{}, err
	}

	var updated User
	if err := a.client.doJSON(ctx, http.MethodPut, "/auth/v1/user", token, fields, &updated); err != nil {
		return User{}, err
	}

	session.setUser(updated)
	a.emit(EventUserUpdated, session)
	return updated, nil
}

func (a *Auth) refreshGrant(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	body := map[string]any{"refresh_token": refreshToken}

	var resp tokenResponse
	err := a.client.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *Auth) setSession(s *Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}
