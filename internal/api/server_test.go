package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newAuthedServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(&Options{
		AuthUsername: "viewer",
		AuthPassword: "hunter2",
		FPS:          5,
		Service:      twoCameraService(),
	})
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestAuthRequiredForStreamEndpoints(t *testing.T) {
	s := newAuthedServer(t)

	for _, path := range []string{"/api/streams", "/api/status", "/api/frame/0", "/api/logs"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := do(t, s, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without credentials: expected 401, got %d", path, rec.Code)
		}
		if got := rec.Header().Get("WWW-Authenticate"); got == "" {
			t.Errorf("GET %s: expected WWW-Authenticate challenge", path)
		}
	}
}

func TestAuthAcceptsValidCredentials(t *testing.T) {
	s := newAuthedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/streams", nil)
	req.Header.Set("Authorization", basicAuth("viewer", "hunter2"))
	rec := do(t, s, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid credentials, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRejectsWrongPassword(t *testing.T) {
	s := newAuthedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/streams", nil)
	req.Header.Set("Authorization", basicAuth("viewer", "wrong"))
	rec := do(t, s, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong password, got %d", rec.Code)
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	s := newAuthedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := do(t, s, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected health to bypass auth, got %d", rec.Code)
	}
}

func TestNoAuthConfiguredAllowsAccess(t *testing.T) {
	s := NewServer(&Options{
		FPS:     5,
		Service: twoCameraService(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/streams", nil)
	rec := do(t, s, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with auth disabled, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newAuthedServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/streams", nil)
	rec := do(t, s, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}

func TestStopBeforeStartRefusesToServe(t *testing.T) {
	s := NewServer(&Options{
		FPS:     5,
		Service: twoCameraService(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop before Start failed: %v", err)
	}

	// A stopped server must not begin listening.
	if err := s.Start("127.0.0.1:0"); !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Expected ErrServerClosed after Stop, got %v", err)
	}
}
