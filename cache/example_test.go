package cache_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blankcnvs/so-auth/cache"
)

func ExampleCoordinator_GetOrFetch() {
	calls := 0
	fetcher := cache.FetcherFunc[string](func(_ context.Context, identity, _ string) (string, error) {
		calls++
		return "session-for-" + identity, nil
	})

	c, _ := cache.NewCoordinator[string](fetcher, cache.DefaultPolicy())
	ctx := context.Background()

	v1, _ := c.GetOrFetch(ctx, "alice", "secret")
	v2, _ := c.GetOrFetch(ctx, "alice", "secret")

	fmt.Println(v1)
	fmt.Println(v2)
	fmt.Println("fetches:", calls)
	// Output:
	// session-for-alice
	// session-for-alice
	// fetches: 1
}

func ExampleCoordinator_GetOrFetch_errorsNotCached() {
	fail := true
	fetcher := cache.FetcherFunc[string](func(context.Context, string, string) (string, error) {
		if fail {
			return "", errors.New("login failed")
		}
		return "ok", nil
	})

	c, _ := cache.NewCoordinator[string](fetcher, cache.Policy{TTL: time.Minute})
	ctx := context.Background()

	_, err := c.GetOrFetch(ctx, "bob", "pw")
	fmt.Println("first:", err)

	fail = false
	v, err := c.GetOrFetch(ctx, "bob", "pw")
	fmt.Println("second:", v, err)
	// Output:
	// first: login failed
	// second: ok <nil>
}
