package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blankcnvs/so-auth/auth"
	"github.com/blankcnvs/so-auth/observe"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestInfo is filled in by inner handlers for the access log.
type requestInfo struct {
	principal string
}

type requestInfoKey struct{}

// tagPrincipal records the authenticated caller for the access log. It must
// run inside auth.Middleware.
func tagPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
			info.principal = auth.PrincipalFromContext(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one line per request, with the caller's principal when the
// route is authenticated. Bodies are never logged.
func accessLog(logger observe.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

		fields := []observe.Field{
			{Key: "method", Value: r.Method},
			{Key: "path", Value: r.URL.Path},
			{Key: "status", Value: rec.status},
			{Key: "duration_ms", Value: float64(time.Since(start).Milliseconds())},
		}
		if info.principal != "" {
			fields = append(fields, observe.Field{Key: "principal", Value: info.principal})
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Warn(r.Context(), "request failed", fields...)
			return
		}
		logger.Debug(r.Context(), "request", fields...)
	})
}

// recoverer turns a handler panic into a 500.
func recoverer(logger observe.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			logger.Error(r.Context(), "handler panic",
				observe.Field{Key: "path", Value: r.URL.Path},
				observe.Field{Key: "panic", Value: fmt.Sprint(rv)},
			)
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		}()
		next.ServeHTTP(w, r)
	})
}
