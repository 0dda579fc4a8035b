// Package postgrest implements remote.Store over the Supabase REST API.
package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	pgrest "github.com/supabase-community/postgrest-go"

	"github.com/atinyakov/TimeKeeper/internal/models"
	"github.com/atinyakov/TimeKeeper/internal/remote"
)

const (
	restPath = "/rest/v1/"
	userPath = "/auth/v1/user"

	returnRepresentation = "representation"
	returnMinimal        = "minimal"
)

// StatusError is a non-2xx response to a request made outside the REST API.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// QueryError is a failed REST request. Err carries the PostgREST error code
// and message.
type QueryError struct {
	Op    string
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Client talks to one Supabase project.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	http    *http.Client
	rest    *pgrest.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for the auth and health
// requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAccessToken sets the user's session token. Without it requests are
// made with the anon key and AuthenticatedUserID fails.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for the project at baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rest = pgrest.NewClient(c.baseURL+restPath, "public", map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + c.bearer(),
	})
	return c
}

func (c *Client) bearer() string {
	if c.token != "" {
		return c.token
	}
	return c.apiKey
}

// exec runs q and decodes the response into out when out is not nil. The
// REST client has no request context, so a cancelled ctx abandons the call.
func (c *Client) exec(ctx context.Context, op, table string, q *pgrest.FilterBuilder, out any) error {
	if c.rest.ClientError != nil {
		return &QueryError{Op: op, Table: table, Err: c.rest.ClientError}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		var err error
		if out != nil {
			_, err = q.ExecuteTo(out)
		} else {
			_, _, err = q.Execute()
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w: %w", op, table, remote.ErrUnavailable, ctx.Err())
	case err := <-done:
		return classify(op, table, err)
	}
}

// classify maps REST client errors onto the remote error kinds. Transport
// failures surface as *url.Error; PGRST30x codes are JWT rejections.
func classify(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var uerr *url.Error
	var nerr net.Error
	if errors.As(err, &uerr) || errors.As(err, &nerr) {
		return fmt.Errorf("%s %s: %w: %w", op, table, remote.ErrUnavailable, err)
	}
	qerr := &QueryError{Op: op, Table: table, Err: err}
	if strings.Contains(err.Error(), "(PGRST30") {
		return fmt.Errorf("%w: %w", remote.ErrUnauthenticated, qerr)
	}
	return qerr
}

// single runs a request answered with a representation array and returns its
// first element.
func single[T any](ctx context.Context, c *Client, op, table string, q *pgrest.FilterBuilder) (T, error) {
	var rows []T
	var zero T
	if err := c.exec(ctx, op, table, q, &rows); err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s %s: %w", op, table, remote.ErrNotFound)
	}
	return rows[0], nil
}

// FetchProjects implements remote.Store.
func (c *Client) FetchProjects(ctx context.Context) ([]models.Project, error) {
	q := c.rest.From(models.CollectionProjects).
		Select("*", "", false).
		Order("name", &pgrest.OrderOpts{Ascending: true})
	var out []models.Project
	if err := c.exec(ctx, "select", models.CollectionProjects, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchEntries implements remote.Store. A range bounded on both ends is sent
// as one logic tree since each filter column holds a single condition.
func (c *Client) FetchEntries(ctx context.Context, filter models.EntryFilter) ([]models.TimeEntry, error) {
	q := c.rest.From(models.CollectionTimeEntries).Select("*", "", false)
	from, to := timestamp(filter.From), timestamp(filter.To)
	switch {
	case from != "" && to != "":
		q = q.Or(fmt.Sprintf("and(start_time.gte.%q,start_time.lt.%q)", from, to), "")
	case from != "":
		q = q.Gte("start_time", from)
	case to != "":
		q = q.Lt("start_time", to)
	}
	q = q.Order("start_time", &pgrest.OrderOpts{Ascending: filter.Ascending})

	var out []models.TimeEntry
	if err := c.exec(ctx, "select", models.CollectionTimeEntries, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// InsertEntry implements remote.Store.
func (c *Client) InsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error) {
	q := c.rest.From(models.CollectionTimeEntries).Insert(e, false, "", returnRepresentation, "")
	return single[models.TimeEntry](ctx, c, "insert", models.CollectionTimeEntries, q)
}

// UpdateEntry implements remote.Store.
func (c *Client) UpdateEntry(ctx context.Context, id string, upd models.EntryUpdate) (models.TimeEntry, error) {
	q := c.rest.From(models.CollectionTimeEntries).
		Update(entryPatch(upd), returnRepresentation, "").
		Eq("id", id)
	return single[models.TimeEntry](ctx, c, "update", models.CollectionTimeEntries, q)
}

// DeleteEntry implements remote.Store.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	q := c.rest.From(models.CollectionTimeEntries).Delete(returnMinimal, "").Eq("id", id)
	return c.exec(ctx, "delete", models.CollectionTimeEntries, q, nil)
}

// UpsertEntry implements remote.Store.
func (c *Client) UpsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error) {
	q := c.rest.From(models.CollectionTimeEntries).Upsert(e, "id", returnRepresentation, "")
	return single[models.TimeEntry](ctx, c, "upsert", models.CollectionTimeEntries, q)
}

// InsertProject implements remote.Store.
func (c *Client) InsertProject(ctx context.Context, p models.Project) (models.Project, error) {
	q := c.rest.From(models.CollectionProjects).Insert(p, false, "", returnRepresentation, "")
	return single[models.Project](ctx, c, "insert", models.CollectionProjects, q)
}

// UpdateProject implements remote.Store.
func (c *Client) UpdateProject(ctx context.Context, id string, upd models.ProjectUpdate) (models.Project, error) {
	q := c.rest.From(models.CollectionProjects).
		Update(upd, returnRepresentation, "").
		Eq("id", id)
	return single[models.Project](ctx, c, "update", models.CollectionProjects, q)
}

// DeleteProject implements remote.Store.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	q := c.rest.From(models.CollectionProjects).Delete(returnMinimal, "").Eq("id", id)
	return c.exec(ctx, "delete", models.CollectionProjects, q, nil)
}

// UpsertProject implements remote.Store.
func (c *Client) UpsertProject(ctx context.Context, p models.Project) (models.Project, error) {
	q := c.rest.From(models.CollectionProjects).Upsert(p, "id", returnRepresentation, "")
	return single[models.Project](ctx, c, "upsert", models.CollectionProjects, q)
}

// AuthenticatedUserID implements remote.Store. The user endpoint belongs to
// the auth API, not PostgREST.
func (c *Client) AuthenticatedUserID(ctx context.Context) (string, error) {
	if c.token == "" {
		return "", remote.ErrUnauthenticated
	}
	resp, err := c.raw(ctx, http.MethodGet, userPath, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode %s response: %w", userPath, err)
	}
	if user.ID == "" {
		return "", remote.ErrUnauthenticated
	}
	return user.ID, nil
}

// Ping implements remote.Store. Any answer below 500 means reachable.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	resp, err := c.raw(ctx, http.MethodHead, restPath+models.CollectionProjects, q)
	if err == nil {
		resp.Body.Close()
		return nil
	}
	var serr *StatusError
	if errors.As(err, &serr) && serr.Status < http.StatusInternalServerError {
		return nil
	}
	return err
}

// raw sends a request outside the REST query builder. A non-2xx answer is a
// *StatusError; the caller closes the body of a successful response.
func (c *Client) raw(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, remote.ErrUnavailable, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	serr := &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %w", remote.ErrUnauthenticated, serr)
	}
	return nil, serr
}

// entryPatch renders upd as a PATCH body. A detached project becomes null.
func entryPatch(upd models.EntryUpdate) map[string]any {
	body := make(map[string]any, 4)
	if upd.Description != nil {
		body["description"] = *upd.Description
	}
	if upd.ProjectID != nil {
		if *upd.ProjectID == "" {
			body["project_id"] = nil
		} else {
			body["project_id"] = *upd.ProjectID
		}
	}
	if upd.EndTime != nil {
		body["end_time"] = upd.EndTime.UTC()
	}
	if upd.Duration != nil {
		body["duration"] = *upd.Duration
	}
	return body
}

var _ remote.Store = (*Client)(nil)
