// Package idx generates lexicographically sortable ULID identifiers for
// notifications, gateway sessions and request correlation.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

// Zero is the zero value ID, only useful as a placeholder.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	genMu   sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new ULID-based ID using the current time in UTC and a
// shared monotonic entropy source. Safe for concurrent use; IDs generated
// within the same millisecond still sort in generation order.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt generates an ID at the provided time. Useful in tests.
func NewAt(t time.Time) ID {
	genMu.Lock()
	defer genMu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time extracts the embedded UTC timestamp, or the zero time for an
// invalid or zero ID.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time()).UTC()
}
