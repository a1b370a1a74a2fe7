package checker

import (
	"context"

	"github.com/hazz-dev/healthwatch/internal/config"
)

// Checker performs a single bounded-time probe of a target. Implementations
// must be safe for concurrent use across targets and must not retain state
// between calls.
type Checker interface {
	Check(ctx context.Context, target config.Target) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, target config.Target) Result

func (f CheckerFunc) Check(ctx context.Context, target config.Target) Result {
	return f(ctx, target)
}
