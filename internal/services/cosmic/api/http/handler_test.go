package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/account"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/command"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/interpreter"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/storage/sqlite"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/token"
	"github.com/louisbranch/agicosmic/internal/telemetry"
)

type testEnv struct {
	handler http.Handler
	store   *sqlite.Store
}

type envOption func(*Config)

func newTestEnv(t *testing.T, interp interpreter.Interpreter, opts ...envOption) *testEnv {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "cosmic.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := token.NewIssuer(token.Config{
		Secret: []byte("test-secret-with-enough-bytes"),
		Issuer: "agi-cosmic-test",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	emitter := telemetry.NewEmitter(store)
	commands := command.NewService(store, interp, emitter, zap.NewNop(), command.Config{HistoryLimit: 10})
	cfg := Config{
		Users:       store,
		Commands:    commands,
		Tokens:      tokens,
		Hasher:      account.Hasher{Cost: bcrypt.MinCost},
		Emitter:     emitter,
		Logger:      zap.NewNop(),
		CORSOrigins: []string{"http://localhost:3000"},
		Ready:       store.Ping,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return &testEnv{handler: h.Routes(), store: store}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "password": "secret123", "role": "Chancellor",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body = %s", rec.Code, rec.Body.String())
	}
	tok := decodeBody[tokenResponse](t, rec)
	if tok.TokenType != "bearer" || tok.AccessToken == "" || tok.ExpiresIn != 3600 {
		t.Fatalf("unexpected token response %+v", tok)
	}
	return tok.AccessToken
}

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("root status = %d", rec.Code)
	}
	root := decodeBody[map[string]string](t, rec)
	if root["message"] != welcomeMessage || root["version"] != Version {
		t.Fatalf("unexpected root %v", root)
	}

	rec = env.do(t, http.MethodGet, "/health", "", nil)
	if body := decodeBody[map[string]string](t, rec); body["status"] != "healthy" {
		t.Fatalf("unexpected health %v", body)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/ai/status", "", nil)
	if status := decodeBody[interpreter.Status](t, rec); status.Mode != interpreter.ModeFallback {
		t.Fatalf("mode = %q", status.Mode)
	}

	if rec := env.do(t, http.MethodGet, "/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", rec.Code)
	}
}

func TestHealthReportsUnreachableStore(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *Config) {
		cfg.Ready = func(context.Context) error { return errors.New("database is locked") }
	})

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want 503", rec.Code)
	}
	if body := decodeBody[map[string]string](t, rec); body["status"] != "unhealthy" {
		t.Fatalf("unexpected health %v", body)
	}
}

func TestHealthAfterStoreClosed(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if rec := env.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want 503", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "Alice", "password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	user := decodeBody[userResponse](t, rec)
	if user.Username != "alice" || user.Role != account.DefaultRole || user.ID == "" {
		t.Fatalf("unexpected user %+v", user)
	}

	c, err := env.store.GetCountryByOwner(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("country not created: %v", err)
	}
	if c.State["name"] != "Aliceland" {
		t.Fatalf("country name = %v", c.State["name"])
	}

	events, err := env.store.ListTelemetryEvents(context.Background(), telemetry.EventUserRegistered, 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("registration events = %v, %v", events, err)
	}

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{name: "duplicate", body: map[string]string{"username": "alice", "password": "secret123"}, status: http.StatusConflict, code: "USERNAME_TAKEN"},
		{name: "bad username", body: map[string]string{"username": "a!", "password": "secret123"}, status: http.StatusBadRequest, code: "USERNAME_INVALID"},
		{name: "short password", body: map[string]string{"username": "bob", "password": "123"}, status: http.StatusBadRequest, code: "PASSWORD_INVALID"},
		{name: "malformed", body: "{not json", status: http.StatusBadRequest, code: "REQUEST_MALFORMED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", "", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if body := decodeBody[errorResponse](t, rec); body.Error != tc.code || body.ErrorDescription == "" {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerAndLogin(t, "alice")

	for _, creds := range []map[string]string{
		{"username": "alice", "password": "wrong-password"},
		{"username": "nobody", "password": "secret123"},
	} {
		rec := env.do(t, http.MethodPost, "/auth/login", "", creds)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatal("expected WWW-Authenticate header")
		}
		if body := decodeBody[errorResponse](t, rec); body.ErrorDescription != "incorrect username or password" {
			t.Fatalf("unexpected error %+v", body)
		}
	}

	events, err := env.store.ListTelemetryEvents(context.Background(), telemetry.EventLoginFailed, 10)
	if err != nil || len(events) != 2 {
		t.Fatalf("login failure events = %d, %v", len(events), err)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)
	paths := []struct{ method, path string }{
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/country/state"},
		{http.MethodPost, "/country/command"},
		{http.MethodGet, "/country/history"},
		{http.MethodGet, "/country/stats"},
		{http.MethodGet, "/country/description"},
	}
	for _, p := range paths {
		for _, bearer := range []string{"", "not-a-token"} {
			rec := env.do(t, p.method, p.path, bearer, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("%s %s with %q: status = %d", p.method, p.path, bearer, rec.Code)
			}
		}
	}
}

func TestCountryRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.registerAndLogin(t, "alice")

	rec := env.do(t, http.MethodGet, "/auth/me", bearer, nil)
	if me := decodeBody[userResponse](t, rec); me.Username != "alice" || me.Role != "Chancellor" {
		t.Fatalf("unexpected me %+v", me)
	}

	rec = env.do(t, http.MethodGet, "/country/state", bearer, nil)
	initial := decodeBody[stateResponse](t, rec)
	if initial.Version != 1 || initial.UpdatedAt.IsZero() {
		t.Fatalf("unexpected initial state %+v", initial)
	}

	rec = env.do(t, http.MethodPost, "/country/command", bearer, map[string]string{"command": "raise taxes"})
	if rec.Code != http.StatusOK {
		t.Fatalf("command status = %d body = %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[commandResponse](t, rec)
	if !strings.Contains(result.AssistantMessage, "Acknowledged") || result.Source != command.SourceFallback {
		t.Fatalf("unexpected command result %+v", result)
	}
	if treasury, _ := result.State.Number("economy", "treasury"); treasury != 990 {
		t.Fatalf("treasury = %v", treasury)
	}
	if len(result.Diff) != 2 || result.Events == nil {
		t.Fatalf("diff = %+v events = %v", result.Diff, result.Events)
	}
	if strings.Contains(rec.Body.String(), "no interpreter configured") {
		t.Fatal("interpreter failure detail leaked to client")
	}

	rec = env.do(t, http.MethodGet, "/country/state", bearer, nil)
	after := decodeBody[stateResponse](t, rec)
	if treasury, _ := after.State.Number("economy", "treasury"); treasury != 990 {
		t.Fatalf("persisted treasury = %v", treasury)
	}
	if diff := cmp.Diff(result.State, after.State); diff != "" {
		t.Fatalf("state after command differs from command response (-command +state):\n%s", diff)
	}
	if after.Version != initial.Version+1 || after.Version != result.Version {
		t.Fatalf("version = %d", after.Version)
	}

	rec = env.do(t, http.MethodGet, "/country/history", bearer, nil)
	history := decodeBody[historyResponse](t, rec)
	if len(history.Entries) != 1 || history.Entries[0].Command != "raise taxes" {
		t.Fatalf("unexpected history %+v", history)
	}

	rec = env.do(t, http.MethodGet, "/country/stats", bearer, nil)
	stats := decodeBody[statsResponse](t, rec)
	if stats.BasicInfo.Name != "Aliceland" || stats.BasicInfo.LeaderTitle != "Chancellor" {
		t.Fatalf("unexpected stats %+v", stats.BasicInfo)
	}
	if len(stats.RecentDecisions) != 1 || stats.RecentDecisions[0].Source != command.SourceFallback {
		t.Fatalf("unexpected decisions %+v", stats.RecentDecisions)
	}

	rec = env.do(t, http.MethodGet, "/country/description", bearer, nil)
	desc := decodeBody[descriptionResponse](t, rec)
	if desc.Description != "A nation of 1,000,000 people awaits your leadership." || desc.Source != command.SourceFallback {
		t.Fatalf("unexpected description %+v", desc)
	}
}

func TestCommandValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	bearer := env.registerAndLogin(t, "alice")

	tests := []struct {
		name string
		body any
		code string
	}{
		{name: "empty", body: map[string]string{"command": "   "}, code: "COMMAND_EMPTY"},
		{name: "missing", body: map[string]string{}, code: "COMMAND_EMPTY"},
		{name: "too long", body: map[string]string{"command": strings.Repeat("a", command.DefaultMaxLength+1)}, code: "COMMAND_TOO_LONG"},
		{name: "malformed", body: "[]", code: "REQUEST_MALFORMED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/country/command", bearer, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeBody[errorResponse](t, rec); body.Error != tc.code {
				t.Fatalf("error = %q, want %q", body.Error, tc.code)
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/country/state", bearer, nil)
	state := decodeBody[stateResponse](t, rec)
	if state.Version != 1 {
		t.Fatalf("rejected commands changed the country: version %d", state.Version)
	}
	if rec := env.do(t, http.MethodGet, "/country/history?limit=0", bearer, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("history limit=0 status = %d", rec.Code)
	}
}

func TestCountriesAreScopedToCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.registerAndLogin(t, "alice")
	bob := env.registerAndLogin(t, "bob")

	env.do(t, http.MethodPost, "/country/command", alice, map[string]string{"command": "spend"})

	rec := env.do(t, http.MethodGet, "/country/state", bob, nil)
	state := decodeBody[stateResponse](t, rec)
	if treasury, _ := state.State.Number("economy", "treasury"); treasury != 1000 {
		t.Fatalf("bob's treasury = %v, want untouched 1000", treasury)
	}
	if state.State["name"] != "Bobland" {
		t.Fatalf("bob's country = %v", state.State["name"])
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/country/command", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestNewHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHandler(Config{}); err == nil {
		t.Fatal("expected error without dependencies")
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("abc", 5); got != "abc" {
		t.Fatalf("shorten = %q", got)
	}
	if got := shorten("abcdef", 3); got != "abc..." {
		t.Fatalf("shorten = %q", got)
	}
}
