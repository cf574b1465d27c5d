package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/onelinediary/client/internal/common"
)

// expiryLeeway refreshes the access token slightly before it actually lapses,
// so an in-flight request doesn't race the expiry.
const expiryLeeway = 30 * time.Second

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session holds the auth tokens for one signed-in user and refreshes the
// access token when it is about to expire. The access token is a JWT; its exp
// claim is read, without signature verification, purely to schedule
// refreshes; the server remains the authority.
type Session struct {
	client *RESTClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(c *RESTClient) *Session {
	return &Session{client: c}
}

func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
}

// bearer returns the token for the Authorization header: the session access
// token when signed in (refreshed if stale), the anon key otherwise.
func (s *Session) bearer(ctx context.Context) string {
	s.mu.Lock()
	token := s.accessToken
	stale := token != "" && !s.expiresAt.IsZero() && time.Now().After(s.expiresAt.Add(-expiryLeeway))
	s.mu.Unlock()

	if token == "" {
		return s.client.anonKey
	}
	if stale {
		if err := s.refresh(ctx); err == nil {
			s.mu.Lock()
			token = s.accessToken
			s.mu.Unlock()
		}
	}
	return token
}

func (s *Session) login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	resp, err := s.grant(ctx, "password", body)
	if err != nil {
		return err
	}
	s.store(resp)
	return nil
}

// signup creates a new account. Projects with auto-confirm enabled return a
// ready session, which is adopted immediately; otherwise the user logs in
// after confirming their address.
func (s *Session) signup(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	resp, err := s.authPost(ctx, "/auth/v1/signup", body)
	if err != nil {
		return err
	}
	if resp.AccessToken != "" {
		s.store(resp)
	}
	return nil
}

func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()
	if refreshToken == "" {
		return common.ErrNotLoggedIn
	}

	resp, err := s.grant(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		s.clear()
		return fmt.Errorf("%w: %v", common.ErrRefreshTokenExpired, err)
	}
	s.store(resp)
	return nil
}

func (s *Session) store(resp *tokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.expiresAt = tokenExpiry(resp.AccessToken)
}

// grant calls the token endpoint with the given grant type. Auth requests are
// deliberately outside RESTClient.do: they must not carry a session bearer
// and must never recurse into refresh.
func (s *Session) grant(ctx context.Context, grantType string, body map[string]string) (*tokenResponse, error) {
	resp, err := s.authPost(ctx, "/auth/v1/token?grant_type="+grantType, body)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, common.ErrInvalidToken
	}
	return resp, nil
}

func (s *Session) authPost(ctx context.Context, path string, body map[string]string) (*tokenResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	u := s.client.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.client.anonKey)

	resp, err := s.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", common.ErrorUnauthorized, bytes.TrimSpace(msg))
		}
		return nil, mapStatus(resp.StatusCode, msg)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &tr, nil
}

// tokenExpiry extracts the exp claim from an access token. A token that
// cannot be parsed gets a zero expiry, which disables proactive refresh and
// leaves the 401-retry path to recover.
func tokenExpiry(accessToken string) time.Time {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
