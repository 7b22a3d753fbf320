package auth

import "time"

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Identity is an authenticated caller of the service. It says nothing about
// the site accounts whose cookies the caller asks for.
type Identity struct {
	Principal string
	Method    AuthMethod
	Claims    map[string]any
	ExpiresAt time.Time
}

// IsExpired reports whether the identity has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}
