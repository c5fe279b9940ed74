// Package client implements the authenticated request pipeline against the
// backend HTTP API: token attachment, 401-triggered refresh-and-retry
// (bounded at exactly one refresh per call), and structured error
// classification. Callers never have to reason about token expiry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"vitalink/health-client/internal/domain"
	"vitalink/health-client/internal/logging"
	"vitalink/health-client/internal/tokenstore"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 64 << 10

// Client is the authenticated request pipeline. It owns the Session for the
// lifetime of the process; the token store behind it is a durability
// mechanism, not a second owner.
type Client struct {
	baseURL string
	http    *http.Client
	store   tokenstore.Store
	log     logging.Logger

	mu      sync.Mutex // guards session
	session domain.Session

	// refreshGroup is the single in-progress-refresh handle: concurrent
	// callers that observe a 401 at the same time attach to one refresh
	// flight instead of racing the backend's rotating refresh tokens.
	refreshGroup singleflight.Group
}

// New creates a pipeline against the given base URL (e.g.
// "https://api.example.com/api/v1"). Credentials persisted from a previous
// run are loaded into the session; a missing or corrupt store just means the
// session starts unauthenticated.
func New(baseURL string, store tokenstore.Store, logger logging.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
		log:     logger,
	}
	if creds, err := store.Load(); err == nil {
		c.session = sessionFromCredentials(creds)
	}
	return c
}

// CurrentSession returns a copy of the current session.
func (c *Client) CurrentSession() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ReplaceSession swaps the whole session, persisting it to the store. The
// both-or-neither token invariant is enforced here; a half-set pair is a
// ValidationError. Intended for tests and for restoring a session obtained
// out of band.
func (c *Client) ReplaceSession(s domain.Session) error {
	if !s.Consistent() {
		return &ValidationError{Message: "session must carry both tokens or neither"}
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	if !s.Authenticated() {
		return c.store.Clear()
	}
	return c.store.Save(credentialsFromSession(s))
}

// Login exchanges credentials for a token pair. The backend expects a
// form-encoded body (OAuth2 password flow); everything else on the API is
// JSON. On success the session and store are replaced atomically and the
// current user is looked up to populate the user id.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Session, error) {
	if strings.TrimSpace(username) == "" {
		return domain.Session{}, &ValidationError{Field: "username", Message: "cannot be empty"}
	}
	if password == "" {
		return domain.Session{}, &ValidationError{Field: "password", Message: "cannot be empty"}
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Session{}, &ValidationError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Session{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return domain.Session{}, &NetworkError{Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return domain.Session{}, &AuthenticationError{Reason: apiError(resp.StatusCode, body).Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Session{}, apiError(resp.StatusCode, body)
	}

	var pair tokenPair
	if err := json.Unmarshal(body, &pair); err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		return domain.Session{}, &AuthenticationError{Reason: "malformed token response"}
	}

	session := domain.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    tokenExpiry(pair.AccessToken),
	}
	c.setSession(session)

	// Best effort: resolve the user id behind the new pair. Login stays
	// successful even if this lookup fails.
	if user, err := c.CurrentUser(ctx); err == nil {
		session.UserID = user.ID
		c.setSession(session)
	} else {
		c.log.Warnf("login: could not resolve current user: %v", err)
	}
	return session, nil
}

// Logout destroys the session: both tokens and the user id are cleared from
// memory and from the store.
func (c *Client) Logout() error {
	c.mu.Lock()
	c.session = domain.Session{}
	c.mu.Unlock()
	return c.store.Clear()
}

// Call performs an authenticated request and returns the raw JSON response.
//
// The contract, in order:
//  1. when forceRefresh is set or no access token is held, refresh first;
//  2. attach the bearer token and issue the request;
//  3. on 401, refresh exactly once and retry exactly once; a 401 on the
//     retry is terminal (AuthenticationError), there is no loop;
//  4. any other non-2xx is an APIError; transport failures are
//     NetworkErrors.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body any, forceRefresh bool) (json.RawMessage, error) {
	session := c.CurrentSession()
	if forceRefresh || session.AccessToken == "" {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		session = c.CurrentSession()
	}

	raw, status, err := c.do(ctx, method, path, query, body, session.AccessToken)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.log.Debugf("call %s %s: access token rejected, refreshing", method, path)
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		session = c.CurrentSession()
		raw, status, err = c.do(ctx, method, path, query, body, session.AccessToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			// Fresh tokens were still rejected. Nothing the pipeline can do;
			// the caller must re-authenticate from scratch.
			c.clearSession()
			return nil, &AuthenticationError{Reason: "request rejected after token refresh"}
		}
	}

	if status < 200 || status > 299 {
		return nil, apiError(status, raw)
	}
	return raw, nil
}

// do issues one HTTP request with the given access token and returns the
// body and status. Transport failures come back as NetworkError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, accessToken string) ([]byte, int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, &ValidationError{Message: fmt.Sprintf("encode request body: %v", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, &ValidationError{Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &NetworkError{Err: err}
	}
	return raw, resp.StatusCode, nil
}

// refresh serializes token refresh through the singleflight group: however
// many callers hit a 401 simultaneously, one refresh request goes out and
// everyone shares its outcome.
func (c *Client) refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

// doRefresh exchanges the stored refresh token for a new pair. Any failure
// (transport, 4xx, malformed response) clears both tokens and returns
// AuthenticationError: the pair is unusable once a rotating refresh token
// has been presented. The caller must not retry refresh for this request.
func (c *Client) doRefresh(ctx context.Context) error {
	session := c.CurrentSession()
	if session.RefreshToken == "" {
		c.clearSession()
		return &AuthenticationError{Reason: "no refresh token"}
	}

	payload := map[string]string{"refresh_token": session.RefreshToken}
	raw, status, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, payload, "")
	if err != nil {
		if IsNetworkError(err) {
			c.clearSession()
			return &AuthenticationError{Reason: fmt.Sprintf("refresh failed: %v", err)}
		}
		return err
	}
	if status < 200 || status > 299 {
		c.clearSession()
		return &AuthenticationError{Reason: apiError(status, raw).Message}
	}

	var pair tokenPair
	if err := json.Unmarshal(raw, &pair); err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		c.clearSession()
		return &AuthenticationError{Reason: "malformed refresh response"}
	}

	// Replace both tokens together; the user id carries over.
	c.mu.Lock()
	c.session.AccessToken = pair.AccessToken
	c.session.RefreshToken = pair.RefreshToken
	c.session.ExpiresAt = tokenExpiry(pair.AccessToken)
	session = c.session
	c.mu.Unlock()

	if err := c.store.Save(credentialsFromSession(session)); err != nil {
		c.log.Errorf("refresh: persisting new token pair: %v", err)
	}
	return nil
}

func (c *Client) setSession(s domain.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	if err := c.store.Save(credentialsFromSession(s)); err != nil {
		c.log.Errorf("persisting session: %v", err)
	}
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = domain.Session{}
	c.mu.Unlock()
	if err := c.store.Clear(); err != nil {
		c.log.Errorf("clearing token store: %v", err)
	}
}

// tokenPair mirrors the backend's token response.
type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// tokenExpiry extracts the "exp" claim from an access token without
// verifying the signature; the client has no key and only wants the expiry
// for proactive refresh. Returns zero when the claim is unreadable.
func tokenExpiry(accessToken string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func sessionFromCredentials(creds tokenstore.Credentials) domain.Session {
	s := domain.Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    tokenExpiry(creds.AccessToken),
	}
	if id, err := uuid.Parse(creds.UserID); err == nil {
		s.UserID = id
	}
	// A half-persisted pair should be impossible, but if one shows up treat
	// it as absent rather than carrying the inconsistency forward.
	if !s.Consistent() {
		return domain.Session{}
	}
	return s
}

func credentialsFromSession(s domain.Session) tokenstore.Credentials {
	creds := tokenstore.Credentials{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if s.UserID != uuid.Nil {
		creds.UserID = s.UserID.String()
	}
	return creds
}
