package backendsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenRefreshesExpiredSession(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("grant_type") {
		case "password":
			// expires_in of 1s is inside the refresh buffer, so the first
			// authenticated use must refresh.
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "short-lived",
				"expires_in":    1,
				"refresh_token": "refresh-1",
				"user":          map[string]any{"id": "user-42"},
			})
		case "refresh_token":
			backend.mu.Lock()
			backend.refreshHits++
			backend.mu.Unlock()

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "refresh-1", body["refresh_token"])

			writeTokenResponse(w, "fresh-access", "refresh-2")
		}
	})

	auth := newTestClient(t, mux).Auth()

	var events []AuthChangeEvent
	auth.OnAuthStateChange(func(event AuthChangeEvent, _ *Session) {
		events = append(events, event)
	})

	session, err := auth.SignInWithPassword(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	token, err := session.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh-access", token)
	require.Equal(t, "refresh-2", session.RefreshToken())
	require.Equal(t, 1, backend.refreshHits)
	require.Equal(t, []AuthChangeEvent{EventSignedIn, EventTokenRefreshed}, events)

	// The refreshed token is valid for an hour; no second refresh.
	token, err = session.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh-access", token)
	require.Equal(t, 1, backend.refreshHits)
}

func TestTokenFailsWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	auth := newTestClient(t, http.NewServeMux()).Auth()
	session := newSession(auth, &tokenResponse{
		AccessToken: "expired",
		ExpiresIn:   1,
	})

	_, err := session.Token(context.Background())
	require.ErrorContains(t, err, "no refresh token")
}

func TestExpiryFromFallsBackToJWTClaim(t *testing.T) {
	t.Parallel()

	// Token with an exp claim far in the future. The signature is never
	// checked; expiryFrom only reads the claim.
	const futureToken = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJzdWIiOiJ1c2VyLTQyIiwiZXhwIjo0MTAyNDQ0ODAwfQ." +
		"signature-not-checked"

	at := expiryFrom(&tokenResponse{AccessToken: futureToken})
	require.True(t, at.Year() >= 2090, "expiry should come from the exp claim, got %v", at)
}
