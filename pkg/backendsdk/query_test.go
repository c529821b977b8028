package backendsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectBuildsFiltersAndDecodes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "*, venues(id,name,city)", q.Get("select"))
		require.Equal(t, "eq.active", q.Get("status"))
		require.Equal(t, "eq.music", q.Get("category"))
		require.Equal(t, "date.asc", q.Get("order"))
		require.Equal(t, "20", q.Get("limit"))
		// Unauthenticated reads fall back to the public API role.
		require.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "ev-1", "title": "Orchestra Night"},
			{"id": "ev-2", "title": "Jazz Evening"},
		})
	})
	client := newTestClient(t, mux)

	var events []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	err := client.From("events").
		Select("*, venues(id,name,city)").
		Eq("status", "active").
		Eq("category", "music").
		Order("date", true).
		Limit(20).
		Do(context.Background(), &events)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "Orchestra Night", events[0].Title)
}

func TestSingleNotFound(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/users", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNotAcceptable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "PGRST116",
			"message": "JSON object requested, multiple (or no) rows returned",
		})
	})
	client := newTestClient(t, mux)

	var user map[string]any
	err := client.From("users").Select("id").Eq("id", "nobody").Single().Do(context.Background(), &user)
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestInsertSendsRepresentationPreference(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var rows []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		require.Equal(t, "user-42", rows[0]["user_id"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "ord-1", "order_number": "EN-0001"},
		})
	})
	client := newTestClient(t, mux)

	var created []map[string]any
	err := client.From("orders").
		Insert([]map[string]any{{"user_id": "user-42"}}).
		Do(context.Background(), &created)
	require.NoError(t, err)
	require.Equal(t, "EN-0001", created[0]["order_number"])
}

func TestAuthedQueriesCarrySessionToken(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		writeTokenResponse(w, "user-access-token", "refresh-1")
	})
	mux.HandleFunc("PATCH /rest/v1/users", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer user-access-token", r.Header.Get("Authorization"))
		require.Equal(t, "eq.user-42", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, mux)

	auth := client.Auth()
	session, err := auth.SignInWithPassword(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	err = client.From("users").Authed(session).
		Update(map[string]any{"last_login": "2026-08-29T00:00:00Z"}).
		Eq("id", "user-42").
		Do(context.Background(), nil)
	require.NoError(t, err)
}

func TestInFilter(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/seats", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "in.(s-1,s-2)", r.URL.Query().Get("section_id"))
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})
	client := newTestClient(t, mux)

	var seats []map[string]any
	err := client.From("seats").Select("*").In("section_id", "s-1", "s-2").Do(context.Background(), &seats)
	require.NoError(t, err)
}
