package auth

import (
	"encoding/json"
	"net/http"
	"time"
)

// Config selects which credentials the endpoint accepts.
type Config struct {
	APIKeys   []string
	JWTSecret string
	JWTIssuer string
}

// Enabled reports whether any credential is configured.
func (c Config) Enabled() bool {
	for _, k := range c.APIKeys {
		if k != "" {
			return true
		}
	}
	return c.JWTSecret != ""
}

// New builds an authenticator from c, or returns nil when c is not Enabled.
func New(c Config) Authenticator {
	if !c.Enabled() {
		return nil
	}

	var auths []Authenticator
	if store := NewStaticAPIKeyStore(c.APIKeys...); store.Len() > 0 {
		auths = append(auths, NewAPIKeyAuthenticator(APIKeyConfig{}, store))
	}
	if c.JWTSecret != "" {
		auths = append(auths, NewJWTAuthenticator(
			JWTConfig{Issuer: c.JWTIssuer, Leeway: 30 * time.Second},
			NewStaticKeyProvider([]byte(c.JWTSecret)),
		))
	}
	return NewCompositeAuthenticator(auths...)
}

// Middleware rejects requests authn does not accept with 401 and a JSON
// {"error": ...} body. A nil authn lets every request through.
func Middleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authn == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := authn.Authenticate(r.Context(), &AuthRequest{Headers: r.Header})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}
			if !result.Authenticated {
				msg := ErrMissingCredentials.Error()
				if result.Error != nil {
					msg = result.Error.Error()
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="so-auth"`)
				writeError(w, http.StatusUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), result.Identity)))
		})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
