package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/onelinediary/client/internal/client/models"
	"github.com/onelinediary/client/internal/common"
	"github.com/onelinediary/client/internal/logging"
)

const entrySelect = "id,entry_date,one_liner,long_text,ai_feedback,ai_feedback_generated_at,updated_at,created_at"

// RESTClient implements Store over the backend's PostgREST surface. Row-level
// security scopes every request to the authenticated user, so user ids never
// appear in queries.
type RESTClient struct {
	baseURL string
	anonKey string
	http    *http.Client
	log     logging.Logger
	auth    *Session
}

// NewRESTClient builds a client for the backend at baseURL. The anon key is
// sent as the apikey header and doubles as the bearer token until a user
// session exists.
func NewRESTClient(baseURL, anonKey string, log logging.Logger) *RESTClient {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &RESTClient{
		baseURL: baseURL,
		anonKey: anonKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
	c.auth = newSession(c)
	return c
}

// Login authenticates with email and password, establishing the session used
// by all later calls.
func (c *RESTClient) Login(ctx context.Context, email, password string) error {
	return c.auth.login(ctx, email, password)
}

// Register creates a new account. When the backend auto-confirms addresses
// the returned session is adopted, so the user is signed in immediately.
func (c *RESTClient) Register(ctx context.Context, email, password string) error {
	return c.auth.signup(ctx, email, password)
}

// Logout drops the current session.
func (c *RESTClient) Logout() { c.auth.clear() }

// LoggedIn reports whether a user session exists.
func (c *RESTClient) LoggedIn() bool { return c.auth.active() }

func (c *RESTClient) GetByDate(ctx context.Context, isoDate string) (*models.Entry, error) {
	q := url.Values{}
	q.Set("select", entrySelect)
	q.Set("entry_date", "eq."+isoDate)
	q.Set("limit", "1")

	var rows []models.Entry
	if err := c.do(ctx, http.MethodGet, "/rest/v1/entries", q, nil, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *RESTClient) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	q := url.Values{}
	q.Set("select", entrySelect)
	q.Set("id", "eq."+id)
	q.Set("limit", "1")

	var rows []models.Entry
	if err := c.do(ctx, http.MethodGet, "/rest/v1/entries", q, nil, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, common.ErrorNotFound)
	}
	return &rows[0], nil
}

func (c *RESTClient) ListRange(ctx context.Context, fromDate, toDate string) ([]models.Entry, error) {
	q := url.Values{}
	q.Set("select", "entry_date,long_text")
	q.Add("entry_date", "gte."+fromDate)
	q.Add("entry_date", "lte."+toDate)

	var rows []models.Entry
	if err := c.do(ctx, http.MethodGet, "/rest/v1/entries", q, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *RESTClient) History(ctx context.Context, beforeDate string, limit int) ([]models.Entry, error) {
	q := url.Values{}
	q.Set("select", "entry_date,one_liner")
	q.Set("entry_date", "lt."+beforeDate)
	q.Set("order", "entry_date.desc")
	q.Set("limit", strconv.Itoa(limit))

	var rows []models.Entry
	if err := c.do(ctx, http.MethodGet, "/rest/v1/entries", q, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *RESTClient) UpsertOneLiner(ctx context.Context, isoDate, text string) (*models.Entry, error) {
	q := url.Values{}
	q.Set("on_conflict", "user_id,entry_date")
	q.Set("select", entrySelect)
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=representation",
	}
	body := map[string]any{"entry_date": isoDate, "one_liner": text}

	var rows []models.Entry
	if err := c.do(ctx, http.MethodPost, "/rest/v1/entries", q, headers, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("upsert returned no row: %w", common.ErrorInternal)
	}
	return &rows[0], nil
}

func (c *RESTClient) UpdateLongText(ctx context.Context, isoDate, text string) (*models.Entry, error) {
	q := url.Values{}
	q.Set("entry_date", "eq."+isoDate)
	q.Set("select", entrySelect)
	headers := map[string]string{"Prefer": "return=representation"}
	body := map[string]any{"long_text": text}

	var rows []models.Entry
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/entries", q, headers, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no entry for %s: %w", isoDate, common.ErrorNotFound)
	}
	return &rows[0], nil
}

func (c *RESTClient) SetFeedback(ctx context.Context, id, lastUpdatedAt, feedback, generatedAt string) (bool, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("updated_at", "eq."+lastUpdatedAt)
	q.Set("select", "id")
	headers := map[string]string{"Prefer": "return=representation"}
	body := map[string]any{"ai_feedback": feedback, "ai_feedback_generated_at": generatedAt}

	var rows []models.Entry
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/entries", q, headers, body, &rows); err != nil {
		return false, err
	}
	// Zero rows means the concurrency token no longer matches: a newer write
	// exists and this result is stale.
	return len(rows) > 0, nil
}

func (c *RESTClient) GetProfile(ctx context.Context) (*models.Profile, error) {
	q := url.Values{}
	q.Set("select", "id,display_name,email,created_at")
	q.Set("limit", "1")

	var rows []models.Profile
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles", q, nil, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile: %w", common.ErrorNotFound)
	}
	return &rows[0], nil
}

func (c *RESTClient) DeleteByID(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return c.do(ctx, http.MethodDelete, "/rest/v1/entries", q, nil, nil, nil)
}

func (c *RESTClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.do(ctx, http.MethodGet, "/auth/v1/health", nil, nil, nil, nil); err != nil {
		return common.ErrUnavailable
	}
	return nil
}

// do performs one request against the backend: builds the URL, attaches auth
// headers, encodes/decodes JSON, and maps failure statuses onto sentinel
// errors. A 401 on a live session triggers one token refresh and retry,
// mirroring how expired access tokens are recovered.
func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, out any) error {
	retried := false
	for {
		status, err := c.once(ctx, method, path, query, headers, body, out)
		if err == nil {
			return nil
		}
		if status == http.StatusUnauthorized && !retried && c.auth.active() {
			if refreshErr := c.auth.refresh(ctx); refreshErr == nil {
				retried = true
				continue
			}
		}
		return err
	}
}

func (c *RESTClient) once(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, out any) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.auth.bearer(ctx))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, mapStatus(resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func mapStatus(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", common.ErrorUnauthorized, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w (status %d)", common.ErrorNotFound, status)
	case status >= 500:
		return fmt.Errorf("%w (status %d)", common.ErrUnavailable, status)
	default:
		return fmt.Errorf("remote store error (status %d): %s", status, bytes.TrimSpace(body))
	}
}
