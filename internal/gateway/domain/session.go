package domain

import "time"

// StoredSession is one browser session persisted by the gateway: the cookie
// token hash and the backend refresh token needed to resume the sign-in
// after a restart.
type StoredSession struct {
	TokenHash    string
	UserID       string
	Email        string
	RefreshToken string
	CreatedAt    time.Time
	LastSeenAt   time.Time
	ExpiresAt    time.Time
}
