package domain

import "time"

// Identity is the signed-in account as the gateway sees it: the backend's
// opaque user id plus the profile fields mirrored into the users table.
// The session manager owns it; nothing else mutates it.
type Identity struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	EmailVerified bool
	LastLoginAt   time.Time
}
