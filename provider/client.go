package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config configures the REST client.
type Config struct {
	// BaseURL is the auth API root, e.g. https://project.example.co/auth/v1.
	BaseURL string
	// APIKey is the public key sent with every request.
	APIKey string
	// ServiceKey authorizes administrative calls such as DeleteAccount.
	ServiceKey string
}

// Client talks to a GoTrue-compatible REST API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     Config
	now        func() time.Time
}

var _ Gateway = (*Client)(nil)

// NewClient returns a Client. Per-call timeouts are the caller's context deadline.
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     cfg,
		now:        time.Now,
	}
}

type userPayload struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *userPayload `json:"user"`
}

// signupPayload covers both response shapes: a bare user when confirmation is
// pending and a session when auto-confirm is on.
type signupPayload struct {
	userPayload
	User *userPayload `json:"user"`
}

type errorPayload struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) CreateAccount(ctx context.Context, email, password string, metadata map[string]string) (*Identity, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var out signupPayload
	if err := c.do(ctx, http.MethodPost, "/signup", nil, c.config.APIKey, body, &out); err != nil {
		return nil, err
	}

	u := out.userPayload
	if out.User != nil {
		u = *out.User
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: signup response without user id", ErrUnavailable)
	}
	return u.identity(), nil
}

func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (*Session, error) {
	q := url.Values{"grant_type": {"password"}}
	var out sessionPayload
	err := c.do(ctx, http.MethodPost, "/token", q, c.config.APIKey, map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, defaultKind(err, ErrInvalidCredentials)
	}
	return c.session(out)
}

func (c *Client) RefreshExternalSession(ctx context.Context, refreshToken string) (*Session, error) {
	q := url.Values{"grant_type": {"refresh_token"}}
	var out sessionPayload
	err := c.do(ctx, http.MethodPost, "/token", q, c.config.APIKey, map[string]string{"refresh_token": refreshToken}, &out)
	if err != nil {
		return nil, defaultKind(err, ErrInvalidToken)
	}
	return c.session(out)
}

func (c *Client) SignOutExternal(ctx context.Context, accessToken string) error {
	err := c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil, nil)
	// An already-invalid provider session is signed out as far as we care.
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *Client) VerifyEmailToken(ctx context.Context, tokenHash, verificationType string) (*Session, error) {
	var out sessionPayload
	err := c.do(ctx, http.MethodPost, "/verify", nil, c.config.APIKey, map[string]string{"type": verificationType, "token_hash": tokenHash}, &out)
	if err != nil {
		return nil, defaultKind(err, ErrInvalidToken)
	}
	return c.session(out)
}

func (c *Client) SendPasswordResetEmail(ctx context.Context, email, redirectURL string) error {
	var q url.Values
	if redirectURL != "" {
		q = url.Values{"redirect_to": {redirectURL}}
	}
	return c.do(ctx, http.MethodPost, "/recover", q, c.config.APIKey, map[string]string{"email": email}, nil)
}

func (c *Client) SetNewPassword(ctx context.Context, accessToken, newPassword string) error {
	err := c.do(ctx, http.MethodPut, "/user", nil, accessToken, map[string]string{"password": newPassword}, nil)
	return defaultKind(err, nil)
}

func (c *Client) DeleteAccount(ctx context.Context, userID string) error {
	err := c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), nil, c.config.ServiceKey, nil, nil)
	// Deleting an identity that is already gone is success.
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *Client) session(p sessionPayload) (*Session, error) {
	if p.AccessToken == "" || p.User == nil {
		return nil, fmt.Errorf("%w: token response without session", ErrUnavailable)
	}
	s := &Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		Identity:     *p.User.identity(),
	}
	switch {
	case p.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(p.ExpiresAt, 0)
	case p.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return s, nil
}

func (u userPayload) identity() *Identity {
	return &Identity{ID: u.ID, Email: u.Email, EmailConfirmedAt: u.EmailConfirmedAt}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	reqURL := c.config.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode provider request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, data)
		level := slog.LevelWarn
		if errors.Is(apiErr, ErrUnavailable) {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "provider returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	var p errorPayload
	_ = json.Unmarshal(body, &p)

	apiErr := &APIError{Status: status}
	apiErr.Code = firstNonEmpty(p.ErrorCode, p.Error)
	apiErr.Message = firstNonEmpty(p.Msg, p.Message, p.ErrorDescription, http.StatusText(status))
	apiErr.kind = classify(status, apiErr.Code, apiErr.Message)
	return apiErr
}

func classify(status int, code, msg string) error {
	switch code {
	case "user_already_exists", "email_exists", "identity_already_exists":
		return ErrDuplicate
	case "weak_password":
		return ErrWeakPassword
	case "invalid_credentials":
		return ErrInvalidCredentials
	case "email_not_confirmed":
		return ErrEmailNotConfirmed
	case "otp_expired", "bad_jwt", "session_not_found", "session_expired", "refresh_token_not_found", "refresh_token_already_used", "flow_state_expired":
		return ErrInvalidToken
	case "user_not_found":
		return ErrNotFound
	case "over_request_rate_limit", "over_email_send_rate_limit":
		return ErrUnavailable
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already registered"), strings.Contains(lower, "already exists"):
		return ErrDuplicate
	case strings.Contains(lower, "password should"), strings.Contains(lower, "weak password"):
		return ErrWeakPassword
	case strings.Contains(lower, "invalid login credentials"):
		return ErrInvalidCredentials
	case strings.Contains(lower, "email not confirmed"):
		return ErrEmailNotConfirmed
	}

	switch {
	case status >= 500, status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return ErrUnavailable
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrInvalidToken
	case status == http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// defaultKind assigns fallback to 4xx responses classify could not place.
func defaultKind(err error, fallback error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.kind != nil {
		return err
	}
	if fallback == nil {
		fallback = ErrUnavailable
	}
	apiErr.kind = fallback
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
