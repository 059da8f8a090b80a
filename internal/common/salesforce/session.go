// Package salesforce is the record store client: a username-password OAuth session and a small
// REST client over sObjects, composite delete and SOQL queries.
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"soloparent-workers/internal/common/config"

	"golang.org/x/sync/singleflight"
)

// loginTimeout bounds a shared login, which runs detached from the caller that started it.
const loginTimeout = 30 * time.Second

// AuthError is returned when the login endpoint rejects the credentials.
type AuthError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("salesforce login failed (status %d): %s: %s", e.StatusCode, e.Code, e.Description)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	ID          string `json:"id"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Session holds one authenticated connection to the org. It is opened at process start, shared
// by every worker, and re-established when the store reports the token as invalid.
type Session struct {
	cfg        config.SalesforceConfig
	httpClient *http.Client

	logins singleflight.Group

	mu          sync.Mutex
	accessToken string
	instanceURL string
	issuedAt    time.Time
}

func NewSession(cfg config.SalesforceConfig, httpClient *http.Client) *Session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.GetDuration(cfg.Timeout)}
	}
	return &Session{cfg: cfg, httpClient: httpClient}
}

// Open logs in eagerly so a bad credential fails startup rather than the first job.
func (s *Session) Open(ctx context.Context) error {
	_, _, err := s.relogin(ctx)
	return err
}

// Token returns the current access token and instance URL, logging in if needed.
func (s *Session) Token(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	token, instance := s.accessToken, s.instanceURL
	s.mu.Unlock()
	if token != "" {
		return token, instance, nil
	}
	return s.relogin(ctx)
}

type credentials struct {
	token    string
	instance string
}

// relogin shares one login round trip between all callers that need a token at the same time.
// Each caller waits only as long as its own ctx allows; the login itself is not cancelled when
// the caller that started it gives up.
func (s *Session) relogin(ctx context.Context) (string, string, error) {
	ch := s.logins.DoChan("login", func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()
		return s.login(lctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", "", res.Err
		}
		c := res.Val.(credentials)
		return c.token, c.instance, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// Invalidate drops the token if it is still the one the caller saw rejected, so concurrent
// callers hitting the same 401 trigger a single re-login.
func (s *Session) Invalidate(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == stale {
		s.accessToken = ""
	}
}

// IssuedAt reports when the current token was obtained; zero when logged out.
func (s *Session) IssuedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" {
		return time.Time{}
	}
	return s.issuedAt
}

// login runs one password grant and stores the result.
func (s *Session) login(ctx context.Context) (credentials, error) {
	tokenURL := strings.TrimSuffix(s.cfg.LoginURL, "/") + "/services/oauth2/token"

	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("client_id", s.cfg.ClientID)
	data.Set("client_secret", s.cfg.ClientSecret)
	data.Set("username", s.cfg.Username)
	data.Set("password", s.cfg.Password+s.cfg.SecurityToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return credentials{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return credentials{}, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return credentials{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var tokErr tokenErrorResponse
		_ = json.Unmarshal(body, &tokErr)
		if tokErr.Error == "" {
			tokErr.Error = http.StatusText(resp.StatusCode)
			tokErr.ErrorDescription = string(body)
		}
		return credentials{}, &AuthError{StatusCode: resp.StatusCode, Code: tokErr.Error, Description: tokErr.ErrorDescription}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return credentials{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" || tok.InstanceURL == "" {
		return credentials{}, &AuthError{StatusCode: resp.StatusCode, Code: "invalid_response", Description: "token response missing access_token or instance_url"}
	}

	c := credentials{token: tok.AccessToken, instance: strings.TrimSuffix(tok.InstanceURL, "/")}
	s.mu.Lock()
	s.accessToken, s.instanceURL = c.token, c.instance
	s.issuedAt = time.Now()
	s.mu.Unlock()
	return c, nil
}
