package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewNormalizesBaseURL(t *testing.T) {
	c, err := New(" localhost:4000/ ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.baseURL != "http://localhost:4000" {
		t.Fatalf("unexpected base url %q", c.baseURL)
	}
}

func TestSeedUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/seed/users" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"message":"Users inserted successfully.","data":{"insertedUsers":[{"id":"1","name":"Admin","email":"admin@example.com","role":"admin","createdAt":"2026-03-01T12:00:00Z"}]}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := c.SeedUsers(context.Background(), "tok")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Message != "Users inserted successfully." || len(res.InsertedUsers) != 1 || res.InsertedUsers[0].Role != "admin" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSeedUsersForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"message":"Permission denied."}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.SeedUsers(context.Background(), "")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "Permission denied." {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"message":"Login successful.","data":{"user":{"id":"1","email":"admin@example.com","role":"admin"},"tokens":{"access_token":"a","refresh_token":"r","expires_in":900}}}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	resp, err := c.Login(context.Background(), "admin@example.com", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Tokens.AccessToken != "a" || resp.Tokens.ExpiresIn != 900 || resp.User.Email != "admin@example.com" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHealthDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	status, err := c.Health(context.Background())
	if err == nil || status != "degraded" {
		t.Fatalf("expected degraded error, got status=%q err=%v", status, err)
	}
}
