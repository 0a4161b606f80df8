package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cleancharcoal/internal/config"
	"cleancharcoal/internal/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureMailer struct {
	mu    sync.Mutex
	codes map[string][]string
}

func (m *captureMailer) SendPasswordResetCode(email, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = map[string][]string{}
	}
	m.codes[email] = append(m.codes[email], code)
	return nil
}

func (m *captureMailer) last(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.codes[email]
	if len(codes) == 0 {
		t.Fatalf("no code sent to %s", email)
	}
	return codes[len(codes)-1]
}

func (m *captureMailer) count(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes[email])
}

type manualNow struct {
	mu sync.Mutex
	t  time.Time
}

func (n *manualNow) Now() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.t
}

func (n *manualNow) Advance(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.t = n.t.Add(d)
}

type testEnv struct {
	app    *App
	mailer *captureMailer
	now    *manualNow
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Database.DSN = ""
	cfg.DevAPI.BcryptCost = 4
	cfg.DevAPI.OTPTTLSeconds = 300
	cfg.DevAPI.MaxAttempts = 5
	cfg.SeedUsers = []config.SeedUser{
		{Email: "demo@cleancharcoal.rw", FullName: "Demo", Role: "burner", Password: "old-password"},
		{Email: "leader@cleancharcoal.rw", FullName: "Lead", Role: "leader", Password: "old-password"},
	}
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		mailer: &captureMailer{},
		now:    &manualNow{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
	}
	a, err := New(context.Background(), testConfig(t), zerolog.Nop(),
		WithEmailService(env.mailer),
		WithNow(env.now.Now),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	env.app = a
	return env
}

const testCSRF = "0123456789abcdef"

// post sends body with a matching CSRF cookie and header.
func (e *testEnv) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRFToken", testCSRF)
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: testCSRF})
	w := httptest.NewRecorder()
	e.app.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("body %q is not a JSON object: %v", w.Body.String(), err)
	}
	return m
}

func TestForgotPage_IssuesCSRFCookie(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forgot-password/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var token string
	for _, c := range w.Result().Cookies() {
		if c.Name == "csrftoken" {
			token = c.Value
		}
	}
	if len(token) != 64 {
		t.Fatalf("csrftoken = %q, want 64 hex chars", token)
	}

	// A client that already holds the cookie keeps it.
	req := httptest.NewRequest(http.MethodGet, "/forgot-password/", nil)
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: token})
	w = httptest.NewRecorder()
	env.app.Router.ServeHTTP(w, req)
	if len(w.Result().Cookies()) != 0 {
		t.Errorf("cookie re-issued: %v", w.Result().Cookies())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not echoed")
	}
}

func TestPasswordAPI_RequiresCSRF(t *testing.T) {
	env := newTestEnv(t)
	body := `{"email":"demo@cleancharcoal.rw"}`

	tests := []struct {
		name   string
		cookie string
		header string
	}{
		{"none", "", ""},
		{"cookie only", testCSRF, ""},
		{"header only", "", testCSRF},
		{"mismatch", testCSRF, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/password/forgot/", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("X-CSRFToken", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "csrftoken", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			env.app.Router.ServeHTTP(w, req)
			if w.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", w.Code)
			}
			if got := decode(t, w)["detail"]; got != "CSRF Failed: CSRF token missing or incorrect." {
				t.Errorf("detail = %q", got)
			}
		})
	}
	if env.mailer.count("demo@cleancharcoal.rw") != 0 {
		t.Error("no code should be sent without a valid CSRF token")
	}
}

func TestForgot_Responses(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		status int
		key    string
		msg    string
	}{
		{"ok", `{"email":"demo@cleancharcoal.rw"}`, http.StatusOK, "message", handlers.MsgCodeSent},
		{"throttled", `{"email":"demo@cleancharcoal.rw"}`, http.StatusTooManyRequests, "error", handlers.MsgThrottled},
		{"unknown", `{"email":"nobody@cleancharcoal.rw"}`, http.StatusNotFound, "error", handlers.MsgUserNotFound},
		{"leader", `{"email":"leader@cleancharcoal.rw"}`, http.StatusForbidden, "error", handlers.MsgLeaderAccount},
		{"missing email", `{}`, http.StatusBadRequest, "error", handlers.MsgEmailRequired},
		{"blank email", `{"email":"   "}`, http.StatusBadRequest, "error", handlers.MsgEmailRequired},
		{"malformed", `{"email":`, http.StatusBadRequest, "error", "Invalid request body."},
	}
	for _, tt := range tests {
		w := env.post("/api/password/forgot/", tt.body)
		if w.Code != tt.status {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, w.Code, tt.status, w.Body.String())
			continue
		}
		if got := decode(t, w)[tt.key]; got != tt.msg {
			t.Errorf("%s: %s = %q, want %q", tt.name, tt.key, got, tt.msg)
		}
	}
	if n := env.mailer.count("demo@cleancharcoal.rw"); n != 1 {
		t.Errorf("codes sent = %d, want 1", n)
	}
}

func resetBody(email, otp, pw, confirm string) string {
	b, _ := json.Marshal(map[string]string{
		"email": email, "otp": otp, "new_password": pw, "confirm_password": confirm,
	})
	return string(b)
}

func TestReset_Flow(t *testing.T) {
	env := newTestEnv(t)
	if w := env.post("/api/password/forgot/", `{"email":"demo@cleancharcoal.rw"}`); w.Code != http.StatusOK {
		t.Fatalf("forgot status = %d", w.Code)
	}
	code := env.mailer.last(t, "demo@cleancharcoal.rw")
	wrong := "10000"
	if code == wrong {
		wrong = "10001"
	}

	steps := []struct {
		name   string
		body   string
		status int
		key    string
		msg    string
	}{
		{"missing fields", `{"email":"demo@cleancharcoal.rw"}`, http.StatusBadRequest, "error", handlers.MsgFieldsRequired},
		{"mismatch", resetBody("demo@cleancharcoal.rw", code, "abc", "xyz"), http.StatusBadRequest, "error", handlers.MsgMismatch},
		{"leader", resetBody("leader@cleancharcoal.rw", code, "abc", "abc"), http.StatusForbidden, "error", handlers.MsgLeaderAccount},
		{"wrong code", resetBody("demo@cleancharcoal.rw", wrong, "abc", "abc"), http.StatusBadRequest, "error", handlers.MsgInvalidOTP},
		{"ok", resetBody("demo@cleancharcoal.rw", code, "n3w-pass", "n3w-pass"), http.StatusOK, "message", handlers.MsgPasswordReset},
		{"reused", resetBody("demo@cleancharcoal.rw", code, "n3w-pass", "n3w-pass"), http.StatusBadRequest, "error", handlers.MsgInvalidOTP},
	}
	for _, s := range steps {
		w := env.post("/api/password/reset/", s.body)
		if w.Code != s.status {
			t.Fatalf("%s: status = %d, want %d (%s)", s.name, w.Code, s.status, w.Body.String())
		}
		if got := decode(t, w)[s.key]; got != s.msg {
			t.Errorf("%s: %s = %q, want %q", s.name, s.key, got, s.msg)
		}
	}
}

func TestReset_ExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	env.post("/api/password/forgot/", `{"email":"demo@cleancharcoal.rw"}`)
	code := env.mailer.last(t, "demo@cleancharcoal.rw")

	env.now.Advance(300 * time.Second)
	w := env.post("/api/password/reset/", resetBody("demo@cleancharcoal.rw", code, "abc", "abc"))
	if w.Code != http.StatusBadRequest || decode(t, w)["error"] != handlers.MsgExpiredOTP {
		t.Errorf("response = %d %s, want 400 %q", w.Code, w.Body.String(), handlers.MsgExpiredOTP)
	}
}

func TestReset_AttemptLimit(t *testing.T) {
	env := newTestEnv(t)
	env.post("/api/password/forgot/", `{"email":"demo@cleancharcoal.rw"}`)
	code := env.mailer.last(t, "demo@cleancharcoal.rw")
	wrong := "10000"
	if code == wrong {
		wrong = "10001"
	}

	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = env.post("/api/password/reset/", resetBody("demo@cleancharcoal.rw", wrong, "abc", "abc"))
	}
	if got := decode(t, last)["error"]; got != handlers.MsgTooManyTries {
		t.Errorf("5th attempt error = %q, want %q", got, handlers.MsgTooManyTries)
	}
	w := env.post("/api/password/reset/", resetBody("demo@cleancharcoal.rw", code, "abc", "abc"))
	if got := decode(t, w)["error"]; got != handlers.MsgExpiredOTP {
		t.Errorf("after lockout error = %q, want %q", got, handlers.MsgExpiredOTP)
	}
}

func TestNew_RejectsBadSeedRole(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedUsers = append(cfg.SeedUsers, config.SeedUser{Email: "x@cleancharcoal.rw", Role: "owner", Password: "pw"})
	if _, err := New(context.Background(), cfg, zerolog.Nop(), WithEmailService(&captureMailer{})); err == nil {
		t.Error("New succeeded with an unknown seed role")
	}
}
