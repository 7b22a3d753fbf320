// Package server exposes cached session cookies over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/blankcnvs/so-auth/auth"
	"github.com/blankcnvs/so-auth/cache"
	"github.com/blankcnvs/so-auth/health"
	"github.com/blankcnvs/so-auth/observe"
	"github.com/blankcnvs/so-auth/session"
)

const maxBodyBytes = 64 << 10

// Sessions is the part of the cache coordinator the handlers use.
type Sessions interface {
	GetOrFetch(ctx context.Context, identity, secret string) (session.Result, error)
	Refresh(ctx context.Context, identity, secret string) (session.Result, error)
	Invalidate(identity string) error
}

// Options configures NewHandler.
type Options struct {
	// Service names the site; the cookie route is /get-<Service>-cookies.
	Service  string
	Sessions Sessions
	Logger   observe.Logger

	// Health, Authenticator and Metrics are optional.
	Health        *health.Aggregator
	Authenticator auth.Authenticator
	Metrics       http.Handler
}

// ErrNoSessions is returned by NewHandler without a Sessions implementation.
var ErrNoSessions = errors.New("server: sessions is nil")

// CookiePath returns the cookie route for service.
func CookiePath(service string) string {
	return "/get-" + service + "-cookies"
}

// NewHandler builds the HTTP surface:
//
//	POST   /get-<service>-cookies  cached or fresh cookies
//	DELETE /get-<service>-cookies  drop an identity's cached cookies
//	GET    /                       static status
//	GET    /healthz, /readyz, /health, /health/{name}
//	GET    /metrics                when a metrics handler is configured
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Sessions == nil {
		return nil, ErrNoSessions
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}

	h := &handlers{sessions: opts.Sessions, logger: opts.Logger}
	protect := auth.Middleware(opts.Authenticator)

	mux := http.NewServeMux()
	path := CookiePath(opts.Service)
	mux.Handle("POST "+path, protect(tagPrincipal(http.HandlerFunc(h.cookies))))
	mux.Handle("DELETE "+path, protect(tagPrincipal(http.HandlerFunc(h.invalidate))))

	title := cases.Title(language.English).String(opts.Service)
	mux.HandleFunc("GET /{$}", health.StatusHandler(title+" Auth Service Running"))

	agg := opts.Health
	if agg == nil {
		agg = health.NewAggregator(health.AggregatorConfig{})
	}
	health.RegisterHandlers(mux, agg)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return recoverer(opts.Logger, accessLog(opts.Logger, mux)), nil
}

type handlers struct {
	sessions Sessions
	logger   observe.Logger
}

// credentials is the request body. Email and Password are accepted for
// clients written against the original endpoint.
type credentials struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) identity() string {
	if c.Identity != "" {
		return c.Identity
	}
	return c.Email
}

func (c credentials) secret() string {
	if c.Secret != "" {
		return c.Secret
	}
	return c.Password
}

func (h *handlers) cookies(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}
	identity, secret := body.identity(), body.secret()
	if err := session.Validate(identity, secret); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	get := h.sessions.GetOrFetch
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		get = h.sessions.Refresh
	}

	result, err := get(r.Context(), identity, secret)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}
	identity := body.identity()
	if err := h.sessions.Invalidate(identity); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case session.IsValidation(err),
		errors.Is(err, cache.ErrInvalidKey),
		errors.Is(err, cache.ErrKeyTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
