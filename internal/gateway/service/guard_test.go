package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entradalabs/entrada/internal/gateway/domain"
)

func TestEvaluateGuard(t *testing.T) {
	t.Parallel()

	identity := &domain.Identity{ID: "user_1", Email: "casey@example.com"}

	cases := []struct {
		name        string
		snapshot    Snapshot
		requirement Requirement
		want        Decision
	}{
		{
			name:        "loading renders pending regardless of requirement",
			snapshot:    Snapshot{Loading: true},
			requirement: Requirement{RequireAuth: true, RequireAdmin: true},
			want:        Decision{Kind: DecisionPending},
		},
		{
			name:        "public view with no session allows",
			snapshot:    Snapshot{},
			requirement: Requirement{},
			want:        Decision{Kind: DecisionAllow},
		},
		{
			name:        "auth required without identity redirects to default",
			snapshot:    Snapshot{},
			requirement: Requirement{RequireAuth: true},
			want:        Decision{Kind: DecisionRedirect, Target: "/login"},
		},
		{
			name:        "auth required honours custom redirect target",
			snapshot:    Snapshot{},
			requirement: Requirement{RequireAuth: true, RedirectTarget: "/signin"},
			want:        Decision{Kind: DecisionRedirect, Target: "/signin"},
		},
		{
			name:        "admin required without identity redirects not denies",
			snapshot:    Snapshot{},
			requirement: Requirement{RequireAdmin: true},
			want:        Decision{Kind: DecisionRedirect, Target: "/login"},
		},
		{
			name:        "admin required with non-admin identity denies",
			snapshot:    Snapshot{Identity: identity},
			requirement: Requirement{RequireAdmin: true},
			want:        Decision{Kind: DecisionDeny},
		},
		{
			name:        "admin required with admin identity allows",
			snapshot:    Snapshot{Identity: identity, IsAdmin: true},
			requirement: Requirement{RequireAdmin: true},
			want:        Decision{Kind: DecisionAllow},
		},
		{
			name:        "auth required with identity allows",
			snapshot:    Snapshot{Identity: identity},
			requirement: Requirement{RequireAuth: true},
			want:        Decision{Kind: DecisionAllow},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Evaluate(tc.snapshot, tc.requirement))
		})
	}
}

func TestDecisionKindString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pending", DecisionPending.String())
	require.Equal(t, "redirect", DecisionRedirect.String())
	require.Equal(t, "deny", DecisionDeny.String())
	require.Equal(t, "allow", DecisionAllow.String())
}
