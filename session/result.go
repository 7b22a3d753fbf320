package session

import "context"

// Result is what a successful login yields. It is serialized verbatim to
// HTTP clients.
type Result struct {
	Success       bool   `json:"success"`
	CookieString  string `json:"cookieString"`
	AuthToken     string `json:"authToken"`
	SessionCookie string `json:"sessionCookie"`
}

// NewResult builds a Result from the two harvested cookies.
func NewResult(sessionName, sessionValue, authName, authValue string) Result {
	return Result{
		Success:       true,
		CookieString:  sessionName + "=" + sessionValue + "; " + authName + "=" + authValue,
		AuthToken:     authValue,
		SessionCookie: sessionValue,
	}
}

// Fetcher logs in with identity and secret and returns the harvested cookies.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Fetch must honor cancellation and release connections on return.
// - Errors: a missing cookie is a failure, never a partial Result.
type Fetcher interface {
	Fetch(ctx context.Context, identity, secret string) (Result, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, identity, secret string) (Result, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, identity, secret string) (Result, error) {
	return f(ctx, identity, secret)
}
