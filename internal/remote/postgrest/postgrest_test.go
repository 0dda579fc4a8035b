package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/TimeKeeper/internal/models"
	"github.com/atinyakov/TimeKeeper/internal/remote"
)

// roundTripperFunc lets a test replace the transport of an http.Client.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "anon-key", WithAccessToken("user-jwt"))
}

func TestFetchEntries_Query(t *testing.T) {
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	to := from.AddDate(0, 0, 1)

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/time_entries", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-jwt", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.True(t, strings.HasPrefix(q.Get("order"), "start_time.desc"), q.Get("order"))
		assert.Equal(t, `(and(start_time.gte."2026-03-09T23:00:00Z",start_time.lt."2026-03-10T23:00:00Z"))`, q.Get("or"))

		_, _ = io.WriteString(w, `[{"id":"e1","project_id":null,"description":"x","start_time":"2026-03-10T08:00:00Z","end_time":"2026-03-10T09:00:00Z","duration":3600,"user_id":"u1","created_at":"2026-03-10T09:00:00Z"}]`)
	})

	got, err := c.FetchEntries(context.Background(), models.EntryFilter{From: from, To: to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
	assert.Nil(t, got[0].ProjectID)
	assert.Equal(t, int64(3600), got[0].Seconds())
}

func TestFetchEntries_LowerBoundOnly(t *testing.T) {
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "gte.2026-03-10T00:00:00Z", q.Get("start_time"))
		assert.Empty(t, q.Get("or"))
		assert.True(t, strings.HasPrefix(q.Get("order"), "start_time.asc"), q.Get("order"))
		_, _ = io.WriteString(w, `[]`)
	})

	got, err := c.FetchEntries(context.Background(), models.EntryFilter{From: from, Ascending: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchProjects_Order(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/projects", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.URL.Query().Get("order"), "name.asc"), r.URL.Query().Get("order"))
		_, _ = io.WriteString(w, `[{"id":"p1","name":"Design","color":"#3b82f6","user_id":"u1"}]`)
	})

	got, err := c.FetchProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Design", got[0].Name)
}

func TestUpsertEntry_Headers(t *testing.T) {
	e := models.TimeEntry{
		ID:          "e1",
		Description: "x",
		StartTime:   time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		Duration:    models.Int64Ptr(60),
		UserID:      "u1",
	}
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")
		assert.Contains(t, r.Header.Get("Prefer"), "return=representation")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got models.TimeEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "e1", got.ID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]models.TimeEntry{got})
	})

	got, err := c.UpsertEntry(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
}

func TestUpdateEntry_PatchBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.e1", r.URL.Query().Get("id"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"project_id": nil, "duration": float64(90)}, body)

		_, _ = io.WriteString(w, `[{"id":"e1","duration":90}]`)
	})

	got, err := c.UpdateEntry(context.Background(), "e1", models.EntryUpdate{
		ProjectID: models.StringPtr(""),
		Duration:  models.Int64Ptr(90),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(90), got.Seconds())
}

func TestUpdateProject_NotFound(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.UpdateProject(context.Background(), "missing", models.ProjectUpdate{Name: models.StringPtr("x")})
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestDeleteEntry(t *testing.T) {
	var called bool
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.e1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteEntry(context.Background(), "e1"))
	assert.True(t, called)
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "constraint violation",
			status: http.StatusConflict,
			body:   `{"code":"23505","message":"duplicate key value violates unique constraint"}`,
			check: func(t *testing.T, err error) {
				var qerr *QueryError
				require.ErrorAs(t, err, &qerr)
				assert.Equal(t, "insert", qerr.Op)
				assert.Equal(t, models.CollectionProjects, qerr.Table)
				assert.Contains(t, err.Error(), "23505")
				assert.NotErrorIs(t, err, remote.ErrUnavailable)
			},
		},
		{
			name:   "expired token",
			status: http.StatusUnauthorized,
			body:   `{"code":"PGRST301","message":"JWT expired"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, remote.ErrUnauthenticated)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.InsertProject(context.Background(), models.Project{ID: "p1"})
			tt.check(t, err)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, "k")

	_, err := c.FetchProjects(context.Background())
	assert.ErrorIs(t, err, remote.ErrUnavailable)

	hc := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})}
	c = New("http://example.com", "k", WithHTTPClient(hc))
	assert.ErrorIs(t, c.Ping(context.Background()), remote.ErrUnavailable)
}

func TestCancelledContext(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent with a cancelled context")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchProjects(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthenticatedUserID_Unauthorized(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid JWT", http.StatusUnauthorized)
	})

	_, err := c.AuthenticatedUserID(context.Background())
	assert.ErrorIs(t, err, remote.ErrUnauthenticated)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "invalid JWT", serr.Body)
}

func TestPing(t *testing.T) {
	status := http.StatusUnauthorized
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(status)
	})

	assert.NoError(t, c.Ping(context.Background()))
	status = http.StatusBadGateway
	assert.Error(t, c.Ping(context.Background()))
}

func TestAuthenticatedUserID(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"u-42","email":"a@b.c"}`)
	})

	id, err := c.AuthenticatedUserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-42", id)

	anon := New("http://example.com", "k")
	_, err = anon.AuthenticatedUserID(context.Background())
	assert.ErrorIs(t, err, remote.ErrUnauthenticated)
}
