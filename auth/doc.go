// Package auth protects the cookie endpoint.
//
// The endpoint hands out live session cookies, so a deployment can require
// callers to present either an API key (X-API-Key) or an HS256-signed bearer
// token. When neither is configured the endpoint stays open.
//
// Health and status endpoints are never wrapped.
package auth
