package checker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hazz-dev/statusbot/internal/config"
)

// Checker probes a single service. Implementations never return errors:
// every failure is reported through the Result.
type Checker interface {
	Check(ctx context.Context, svc config.Service) Result
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc func(ctx context.Context, svc config.Service) Result

func (f CheckFunc) Check(ctx context.Context, svc config.Service) Result {
	return f(ctx, svc)
}

// CheckAll probes every service concurrently and returns the results in the
// same order as services.
func CheckAll(ctx context.Context, c Checker, services []config.Service) []Result {
	results := make([]Result, len(services))
	var g errgroup.Group
	for i, svc := range services {
		g.Go(func() error {
			results[i] = c.Check(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
