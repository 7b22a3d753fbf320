// Package cache coordinates access to slow, fallible credential fetches.
//
// A Coordinator maps an identity to the last successful fetch result and
// serves it while it is younger than a single fixed TTL. On a miss or an
// expired entry it calls the Fetcher, stores the result on success and
// passes errors through untouched. Failures are never cached.
//
// Expiry is lazy: a stale entry is logically absent the moment its age
// reaches the TTL, even while it still sits in the store. An optional
// sweeper reclaims memory for identities that are never queried again.
//
// Concurrent misses for the same identity can be collapsed into one fetch
// (see Policy.SingleFlight). Distinct identities never wait on each other.
//
// Secrets are forwarded to the Fetcher and never retained.
package cache
