package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return &Server{Log: zap.NewNop(), Service: newTestService(t)}
}

func TestLogin_FormFields(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"username": {"admin"}, "password": {"admin123"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	s.LoginHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp loginResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.ExpiresIn != int64((24 * time.Hour).Seconds()) {
		t.Fatalf("expires_in=%d", resp.ExpiresIn)
	}
}

func TestLogin_JSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"admin123"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.LoginHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		body string
		want int
	}{
		{"wrong password", "application/x-www-form-urlencoded", "username=admin&password=nope", http.StatusUnauthorized},
		{"unknown user", "application/x-www-form-urlencoded", "username=root&password=admin123", http.StatusUnauthorized},
		{"missing password", "application/x-www-form-urlencoded", "username=admin", http.StatusBadRequest},
		{"bad json", "application/json", `{"username":`, http.StatusBadRequest},
		{"unknown json field", "application/json", `{"username":"admin","password":"admin123","x":1}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ct)
			rec := httptest.NewRecorder()

			s.LoginHandler().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("missing bearer challenge")
			}
		})
	}
}

func TestWhoAmI(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.WhoAmIHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/whoami", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}

	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	req := httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{Username: "admin", ExpiresAt: exp}))
	rec = httptest.NewRecorder()
	s.WhoAmIHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var got map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["username"] != "admin" || got["expires_at"] != "2030-01-02T03:04:05Z" {
		t.Fatalf("got=%v", got)
	}
}
