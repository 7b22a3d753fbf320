// Package session harvests session cookies by scripting a web-form login.
//
// FormLoginFetcher replays what a browser does against a Rails-style sign-in
// page: it loads the form, keeps the hidden inputs (the CSRF token among
// them), posts the credentials and reads the resulting cookies from a
// per-login cookie jar. Guard wraps any Fetcher with the patterns from the
// resilience package.
//
// Both satisfy cache.Fetcher[Result] so a cache.Coordinator can sit in front
// of them:
//
//	f, _ := session.NewFormLoginFetcher(session.DefaultLoginConfig())
//	guarded := session.NewGuard(f, executor)
//	coord, _ := cache.NewCoordinator[session.Result](guarded, cache.DefaultPolicy())
//
// Secrets are only read while a login runs. Nothing in this package logs or
// keeps them.
package session
