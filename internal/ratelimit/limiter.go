package ratelimit

import "context"

// RateLimiter throttles outbound provider calls per scope. The scope is the
// throttling key; the provider ceiling is account-wide, so all pushes share
// one scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
