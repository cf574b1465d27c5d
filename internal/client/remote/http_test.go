package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onelinediary/client/internal/common"
)

func newTestClient(t *testing.T, handler http.Handler) *RESTClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTClient(srv.URL, "anon-key", nil)
}

// makeJWT builds an unsigned JWT with the given expiry, enough for the
// client-side exp inspection.
func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{"sub": "user-1", "exp": exp.Unix()})
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2ln"
}

func TestRESTClient_GetByDate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/entries", r.URL.Path)
		require.Equal(t, "eq.2024-03-01", r.URL.Query().Get("entry_date"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))
		require.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"id":"e1","entry_date":"2024-03-01","one_liner":"hi","long_text":null,"ai_feedback":null,"ai_feedback_generated_at":null,"updated_at":"2024-03-01T10:00:00Z"}]`)
	}))

	entry, err := c.GetByDate(context.Background(), "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, "e1", entry.ID)
	require.Equal(t, "hi", entry.OneLiner)
	require.Nil(t, entry.LongText)
}

func TestRESTClient_GetByDate_NoRow(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	entry, err := c.GetByDate(context.Background(), "2024-03-01")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestRESTClient_UpsertOneLiner_Wire(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "user_id,entry_date", r.URL.Query().Get("on_conflict"))
		require.Equal(t, "resolution=merge-duplicates,return=representation", r.Header.Get("Prefer"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "2024-03-01", body["entry_date"])
		require.Equal(t, "a quiet day", body["one_liner"])

		fmt.Fprint(w, `[{"id":"e1","entry_date":"2024-03-01","one_liner":"a quiet day","long_text":null,"ai_feedback":null,"ai_feedback_generated_at":null,"updated_at":"2024-03-01T10:00:00Z"}]`)
	}))

	entry, err := c.UpsertOneLiner(context.Background(), "2024-03-01", "a quiet day")
	require.NoError(t, err)
	require.Equal(t, "e1", entry.ID)
	require.Equal(t, "2024-03-01T10:00:00Z", entry.UpdatedAt)
}

func TestRESTClient_SetFeedback_AppliedAndSkipped(t *testing.T) {
	applied := true
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "eq.e1", r.URL.Query().Get("id"))
		require.Equal(t, "eq.2024-03-01T10:00:00Z", r.URL.Query().Get("updated_at"))
		if applied {
			fmt.Fprint(w, `[{"id":"e1","entry_date":"2024-03-01","one_liner":"","long_text":null,"ai_feedback":null,"ai_feedback_generated_at":null}]`)
		} else {
			fmt.Fprint(w, `[]`)
		}
	}))

	ok, err := c.SetFeedback(context.Background(), "e1", "2024-03-01T10:00:00Z", "text", "2024-03-01T10:05:00Z")
	require.NoError(t, err)
	require.True(t, ok)

	applied = false
	ok, err = c.SetFeedback(context.Background(), "e1", "2024-03-01T10:00:00Z", "text", "2024-03-01T10:05:00Z")
	require.NoError(t, err)
	require.False(t, ok, "stale concurrency token must report skipped, not error")
}

func TestRESTClient_History_Wire(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "lt.2024-03-08", q.Get("entry_date"))
		require.Equal(t, "entry_date.desc", q.Get("order"))
		require.Equal(t, "7", q.Get("limit"))
		fmt.Fprint(w, `[{"entry_date":"2024-03-07","one_liner":"seven","long_text":null,"ai_feedback":null,"ai_feedback_generated_at":null}]`)
	}))

	rows, err := c.History(context.Background(), "2024-03-08", 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "seven", rows[0].OneLiner)
}

func TestRESTClient_StatusMapping(t *testing.T) {
	status := http.StatusUnauthorized
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	_, err := c.GetByDate(context.Background(), "2024-03-01")
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	status = http.StatusInternalServerError
	_, err = c.GetByDate(context.Background(), "2024-03-01")
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestRESTClient_TransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewRESTClient(srv.URL, "anon-key", nil)
	_, err := c.GetByDate(context.Background(), "2024-03-01")
	require.ErrorIs(t, err, common.ErrUnavailable)
	require.Error(t, c.Ping(context.Background()))
}

func TestRESTClient_LoginAndBearer(t *testing.T) {
	var token string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@b.c", body["email"])
		fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"r1"}`, token)
	})
	mux.HandleFunc("/rest/v1/entries", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	})

	c := newTestClient(t, mux)
	token = makeJWT(t, time.Now().Add(time.Hour))

	require.NoError(t, c.Login(context.Background(), "a@b.c", "secret"))
	require.True(t, c.LoggedIn())

	_, err := c.GetByDate(context.Background(), "2024-03-01")
	require.NoError(t, err)

	c.Logout()
	require.False(t, c.LoggedIn())
}

func TestRESTClient_RefreshOn401(t *testing.T) {
	old := makeJWT(t, time.Now().Add(time.Hour))
	fresh := makeJWT(t, time.Now().Add(2*time.Hour))
	grants := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		grants++
		switch r.URL.Query().Get("grant_type") {
		case "password":
			fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"r1"}`, old)
		case "refresh_token":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "r1", body["refresh_token"])
			fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"r2"}`, fresh)
		}
	})
	mux.HandleFunc("/rest/v1/entries", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+old {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	c := newTestClient(t, mux)
	require.NoError(t, c.Login(context.Background(), "a@b.c", "secret"))

	entry, err := c.GetByDate(context.Background(), "2024-03-01")
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Equal(t, 2, grants, "expected password grant plus one refresh")
}

func TestSession_RefreshWithoutLogin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	err := c.auth.refresh(context.Background())
	require.True(t, errors.Is(err, common.ErrNotLoggedIn))
}

func TestRegister_AutoConfirmAdoptsSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/signup", r.URL.Path)
		require.Equal(t, "anon-key", r.Header.Get("apikey"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@b.c", body["email"])
		fmt.Fprint(w, `{"access_token":"tok","refresh_token":"ref"}`)
	}))

	require.NoError(t, c.Register(context.Background(), "a@b.c", "secret"))
	require.True(t, c.LoggedIn())
}

func TestRegister_ConfirmationPendingLeavesNoSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"user-1","email":"a@b.c"}`)
	}))

	require.NoError(t, c.Register(context.Background(), "a@b.c", "secret"))
	require.False(t, c.LoggedIn())
}
