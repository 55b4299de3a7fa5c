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
	"time"
)

// Client provides typed access to the userseed API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// envelope mirrors the API's {success,message,data} response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string) (envelope, error) {
	if c == nil {
		return envelope{}, fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	decodeErr := json.Unmarshal(data, &env)
	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(env.Message)
		if decodeErr != nil {
			msg = strings.TrimSpace(string(data))
		}
		return envelope{}, APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	return env, nil
}

// User reflects API user payloads.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	env, err := c.do(ctx, http.MethodPost, "/auth/login", body, "")
	if err != nil {
		return LoginResponse{}, err
	}
	var resp LoginResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		return LoginResponse{}, fmt.Errorf("decode login payload: %w", err)
	}
	return resp, nil
}

// SeedResult is the payload of a successful reseed.
type SeedResult struct {
	Message       string
	InsertedUsers []User
}

// SeedUsers replaces the users collection with the server's seed dataset.
// token may be empty when the server does not require authentication.
func (c *Client) SeedUsers(ctx context.Context, token string) (SeedResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/seed/users", nil, token)
	if err != nil {
		return SeedResult{}, err
	}
	var payload struct {
		InsertedUsers []User `json:"insertedUsers"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return SeedResult{}, fmt.Errorf("decode seed payload: %w", err)
	}
	return SeedResult{Message: env.Message, InsertedUsers: payload.InsertedUsers}, nil
}

// Health reports the server health status ("ok" or "degraded").
func (c *Client) Health(ctx context.Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return payload.Status, APIError{Status: resp.StatusCode, Message: payload.Status}
	}
	return payload.Status, nil
}
