package service

// Requirement describes what a protected view demands of the session.
type Requirement struct {
	RequireAuth    bool
	RequireAdmin   bool
	RedirectTarget string
}

// DefaultRedirectTarget is where unauthenticated viewers are sent when the
// requirement does not name its own target.
const DefaultRedirectTarget = "/login"

// DecisionKind is the outcome of a guard evaluation.
type DecisionKind int

const (
	// DecisionPending means the session is still resolving; render a
	// neutral placeholder.
	DecisionPending DecisionKind = iota
	// DecisionRedirect sends the viewer to Decision.Target.
	DecisionRedirect
	// DecisionDeny renders the fixed access-denied view.
	DecisionDeny
	// DecisionAllow renders the wrapped target unchanged.
	DecisionAllow
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionPending:
		return "pending"
	case DecisionRedirect:
		return "redirect"
	case DecisionDeny:
		return "deny"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision is a guard outcome; Target is set only for redirects.
type Decision struct {
	Kind   DecisionKind
	Target string
}

// Evaluate maps a session snapshot and a requirement onto a render
// decision. It holds no state of its own: same snapshot, same requirement,
// same decision.
//
// An admin requirement implies an auth requirement, so an absent identity
// redirects rather than denies even when only RequireAdmin is set.
func Evaluate(snapshot Snapshot, requirement Requirement) Decision {
	if snapshot.Loading {
		return Decision{Kind: DecisionPending}
	}

	needsAuth := requirement.RequireAuth || requirement.RequireAdmin
	if needsAuth && snapshot.Identity == nil {
		target := requirement.RedirectTarget
		if target == "" {
			target = DefaultRedirectTarget
		}
		return Decision{Kind: DecisionRedirect, Target: target}
	}

	if requirement.RequireAdmin && !snapshot.IsAdmin {
		return Decision{Kind: DecisionDeny}
	}

	return Decision{Kind: DecisionAllow}
}
