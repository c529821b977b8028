package backendsdk

import (
	"encoding/json"
	"time"
)

// User is the backend's view of an authenticated account.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

// EmailVerified reports whether the backend has confirmed the account email.
func (u User) EmailVerified() bool {
	return u.EmailConfirmedAt != nil
}

// MetadataString returns a string field from the free-form user metadata,
// or "" when absent or not a string.
func (u User) MetadataString(key string) string {
	if u.UserMetadata == nil {
		return ""
	}
	s, _ := u.UserMetadata[key].(string)
	return s
}

// tokenResponse is the auth API's token grant response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// signUpResponse covers both backend configurations: with email confirmation
// enabled only the user is returned; without it a full session comes back.
type signUpResponse struct {
	tokenResponse

	// Set when the backend returns a bare user pending email confirmation.
	ID string `json:"id"`
}

// ChangeEvent tags a change-feed payload.
type ChangeEvent string

const (
	ChangeInsert ChangeEvent = "INSERT"
	ChangeUpdate ChangeEvent = "UPDATE"
	ChangeDelete ChangeEvent = "DELETE"
)

// ChangePayload is one change notification from the realtime feed. New and
// Old carry the affected row; either may be absent depending on the event
// type. Delivery is at-least-once and unordered across tables, so handlers
// must be idempotent.
type ChangePayload struct {
	EventType ChangeEvent     `json:"eventType"`
	Table     string          `json:"table"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
}

// ChangeSpec selects which changes a channel handler receives. Event "*"
// matches all event types. Filter is an optional backend-side row filter
// expression (e.g. "section_id=eq.42").
type ChangeSpec struct {
	Event  string `json:"event"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}
