package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// testConfig is an explicit in-memory configuration: no database, no redis.
func testConfig() Config {
	return Config{
		HTTPAddr:          "127.0.0.1:0",
		LogLevel:          "error",
		SessionSecret:     "test-secret",
		SessionCookieName: "ludo_session",
		DeviceCookieName:  "ludo_device_id",
		AdminCookieName:   "ludo_admin",
		AdminCookieTTL:    24 * time.Hour,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"LUDO_HTTP_ADDR", "LUDO_SESSION_SECRET", "LUDO_ADMIN_EMAILS", "LUDO_PRODUCTION"} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.SessionCookieName != "ludo_session" || cfg.DeviceCookieName != "ludo_device_id" {
		t.Errorf("cookie names = %q %q", cfg.SessionCookieName, cfg.DeviceCookieName)
	}
	if cfg.AdminCookieTTL != 24*time.Hour {
		t.Errorf("AdminCookieTTL = %v", cfg.AdminCookieTTL)
	}
	if cfg.Production {
		t.Errorf("Production defaulted true")
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("LUDO_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("LUDO_ADMIN_EMAILS", "a@example.com, b@example.com ,")
	t.Setenv("LUDO_DB_MAX_CONNS", "25")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "b@example.com" {
		t.Errorf("AdminEmails = %v", cfg.AdminEmails)
	}
	if cfg.DBMaxConns != 25 {
		t.Errorf("DBMaxConns = %d", cfg.DBMaxConns)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing session secret error")
	}

	cfg.SessionSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Production = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing service secret error in production")
	}
	cfg.ServiceSecret = "svc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNew_RejectsMissingSecret(t *testing.T) {
	t.Setenv("LUDO_SESSION_SECRET", "")
	if _, err := New(context.Background(), LoadConfig(), NewLogger("error")); err == nil {
		t.Fatalf("expected error for missing session secret")
	}
}

// newTestMux wires an in-memory App and returns its route table.
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	a, err := New(context.Background(), testConfig(), NewLogger("error"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.close)

	mux := http.NewServeMux()
	registerHTTP(mux, a)
	return mux
}

func TestRoutes_Smoke(t *testing.T) {
	mux := newTestMux(t)

	cases := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/auth/status", http.StatusOK},
		{http.MethodPost, "/api/heartbeat", http.StatusUnauthorized},
		{http.MethodPost, "/api/device/check", http.StatusUnauthorized},
		{http.MethodGet, "/admin/api/keys", http.StatusUnauthorized},
		{http.MethodGet, "/admin/api/check-auth", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.wantStatus {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, tc.wantStatus)
		}
	}
}

func TestStatusRoute_RedirectsAnonymousToLogin(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/login") {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestMetricsRoute_ExposesCounters(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "loveludo_heartbeats_total") {
		t.Fatalf("heartbeat counter not exported")
	}
}
