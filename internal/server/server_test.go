package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/blankcnvs/so-auth/auth"
	"github.com/blankcnvs/so-auth/cache"
	"github.com/blankcnvs/so-auth/session"
)

type stubSessions struct {
	mu          sync.Mutex
	gets        int
	refreshes   int
	invalidated []string
	identity    string
	secret      string

	result session.Result
	err    error
	panics bool
}

func (s *stubSessions) GetOrFetch(_ context.Context, identity, secret string) (session.Result, error) {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	s.identity, s.secret = identity, secret
	return s.result, s.err
}

func (s *stubSessions) Refresh(_ context.Context, identity, secret string) (session.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	s.identity, s.secret = identity, secret
	return s.result, s.err
}

func (s *stubSessions) Invalidate(identity string) error {
	if err := cache.ValidateKey(identity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, identity)
	return nil
}

var okResult = session.NewResult("_sophia_session", "s1", "auth_token", "a1")

func newTestHandler(t *testing.T, s *stubSessions, opts ...func(*Options)) http.Handler {
	t.Helper()
	o := Options{Service: "sophia", Sessions: s}
	for _, opt := range opts {
		opt(&o)
	}
	h, err := NewHandler(o)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h
}

func do(h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestNewHandler_NilSessions(t *testing.T) {
	if _, err := NewHandler(Options{Service: "sophia"}); !errors.Is(err, ErrNoSessions) {
		t.Errorf("NewHandler() error = %v, want ErrNoSessions", err)
	}
}

func TestCookies_Success(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"identity and secret", `{"identity":"a@b.c","secret":"pw"}`},
		{"email and password", `{"email":"a@b.c","password":"pw"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSessions{result: okResult}
			rec := do(newTestHandler(t, s), http.MethodPost, "/get-sophia-cookies", tt.body)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
			}
			var got session.Result
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got != okResult {
				t.Errorf("body = %+v, want %+v", got, okResult)
			}
			if s.identity != "a@b.c" || s.secret != "pw" {
				t.Errorf("sessions got (%q, %q)", s.identity, s.secret)
			}
		})
	}
}

func TestCookies_ResultFieldNames(t *testing.T) {
	s := &stubSessions{result: okResult}
	rec := do(newTestHandler(t, s), http.MethodPost, "/get-sophia-cookies", `{"email":"a","password":"b"}`)

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"success", "cookieString", "authToken", "sessionCookie"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("response missing %q: %v", k, raw)
		}
	}
}

func TestCookies_BadRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing identity", `{"secret":"pw"}`, "identity is required"},
		{"blank identity", `{"identity":"  ","secret":"pw"}`, "identity is required"},
		{"missing secret", `{"email":"a@b.c"}`, "secret is required"},
		{"empty object", `{}`, "identity is required"},
		{"not json", `email=a`, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSessions{result: okResult}
			rec := do(newTestHandler(t, s), http.MethodPost, "/get-sophia-cookies", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := errorOf(t, rec); got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
			if s.gets != 0 {
				t.Errorf("sessions called %d times on bad request", s.gets)
			}
		})
	}
}

func TestCookies_FetchFailure(t *testing.T) {
	fetchErr := &session.FetchError{Stage: session.StageCookies, Err: session.ErrMissingCookies}
	s := &stubSessions{err: fetchErr}
	rec := do(newTestHandler(t, s), http.MethodPost, "/get-sophia-cookies", `{"email":"a","password":"b"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := errorOf(t, rec); got != fetchErr.Error() {
		t.Errorf("error = %q, want %q", got, fetchErr.Error())
	}
}

func TestCookies_InvalidKey(t *testing.T) {
	s := &stubSessions{err: cache.ErrKeyTooLong}
	rec := do(newTestHandler(t, s), http.MethodPost, "/get-sophia-cookies", `{"email":"a","password":"b"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCookies_Refresh(t *testing.T) {
	tests := []struct {
		query         string
		wantGets      int
		wantRefreshes int
	}{
		{"", 1, 0},
		{"?refresh=false", 1, 0},
		{"?refresh=true", 0, 1},
		{"?refresh=1", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			s := &stubSessions{result: okResult}
			rec := do(newTestHandler(t, s), http.MethodPost, "/get-sophia-cookies"+tt.query, `{"email":"a","password":"b"}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if s.gets != tt.wantGets || s.refreshes != tt.wantRefreshes {
				t.Errorf("gets=%d refreshes=%d, want %d/%d", s.gets, s.refreshes, tt.wantGets, tt.wantRefreshes)
			}
		})
	}
}

func TestInvalidate(t *testing.T) {
	s := &stubSessions{}
	h := newTestHandler(t, s)

	rec := do(h, http.MethodDelete, "/get-sophia-cookies", `{"identity":"a@b.c"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(s.invalidated) != 1 || s.invalidated[0] != "a@b.c" {
		t.Errorf("invalidated = %v", s.invalidated)
	}

	rec = do(h, http.MethodDelete, "/get-sophia-cookies", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty identity status = %d, want 400", rec.Code)
	}
}

func TestRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})
	h := newTestHandler(t, &stubSessions{}, func(o *Options) { o.Metrics = metrics })

	tests := []struct {
		method   string
		target   string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, "/", http.StatusOK, `"message":"Sophia Auth Service Running"`},
		{http.MethodGet, "/healthz", http.StatusOK, "OK"},
		{http.MethodGet, "/readyz", http.StatusOK, "OK"},
		{http.MethodGet, "/metrics", http.StatusOK, "metrics"},
		{http.MethodGet, "/get-sophia-cookies", http.StatusMethodNotAllowed, ""},
		{http.MethodPost, "/get-other-cookies", http.StatusNotFound, ""},
		{http.MethodGet, "/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(h, tt.method, tt.target, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestCookies_RequiresAuthWhenConfigured(t *testing.T) {
	s := &stubSessions{result: okResult}
	h := newTestHandler(t, s, func(o *Options) {
		o.Authenticator = auth.New(auth.Config{APIKeys: []string{"k1"}})
	})
	body := `{"email":"a","password":"b"}`

	if rec := do(h, http.MethodPost, "/get-sophia-cookies", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}
	if rec := do(h, http.MethodDelete, "/get-sophia-cookies", `{"identity":"a"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("delete without key: status = %d, want 401", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/get-sophia-cookies", body, "X-API-Key", "k1"); rec.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("health behind auth: status = %d", rec.Code)
	}
	if s.gets != 1 {
		t.Errorf("gets = %d, want 1", s.gets)
	}
}

func TestRecoverer(t *testing.T) {
	rec := do(newTestHandler(t, &stubSessions{panics: true}), http.MethodPost, "/get-sophia-cookies", `{"email":"a","password":"b"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := errorOf(t, rec); got != "internal error" {
		t.Errorf("error = %q", got)
	}
}

func TestCookiePath(t *testing.T) {
	if got := CookiePath("sophia"); got != "/get-sophia-cookies" {
		t.Errorf("CookiePath() = %q", got)
	}
}
