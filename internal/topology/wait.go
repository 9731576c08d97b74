package topology

import (
	"context"
	"fmt"
	"time"

	"github.com/simlab-dev/simlab/internal/log"
	"github.com/simlab-dev/simlab/internal/model"
)

// waitConverged polls check until it reports true. The check runs outside
// any lock so event handling keeps running between polls.
func waitConverged(ctx context.Context, logger log.Logger, what string, maxIterations int, waitTime time.Duration, check func(context.Context) (bool, error)) error {
	logger.Infof("Waiting for %s to converge", what)
	for i := 0; i < maxIterations; i++ {
		converged, err := check(ctx)
		if err != nil {
			return err
		}
		if converged {
			logger.Infof("%s has converged", what)
			return nil
		}
		if i%10 == 0 {
			logger.Infof("%s has not converged, attempt %d/%d, waiting", what, i, maxIterations)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	err := fmt.Errorf("%s has not converged after %d tries: %w", what, maxIterations, model.ErrTimeout)
	logger.Errorf("%v", err)
	return err
}

func (l *Lab) waitParams(maxIterations int, waitTime time.Duration) (int, time.Duration) {
	if maxIterations <= 0 {
		maxIterations = l.waitMaxIterations
	}
	if waitTime <= 0 {
		waitTime = l.waitTime
	}
	return maxIterations, waitTime
}

// HasConverged reports whether the controller has finished processing all
// pending element state changes in the lab.
func (l *Lab) HasConverged(ctx context.Context) (bool, error) {
	defer l.guard.Lock()()
	if l.stale {
		return false, gone("lab", l.id)
	}
	var converged bool
	if err := l.api.Get(ctx, l.url("/check_if_converged"), &converged); err != nil {
		return false, l.fail(err)
	}
	return converged, nil
}

// WaitUntilConverged polls the controller until the lab converges.
// Non-positive arguments fall back to the lab's configured wait behavior.
func (l *Lab) WaitUntilConverged(ctx context.Context, maxIterations int, waitTime time.Duration) error {
	maxIterations, waitTime = l.waitParams(maxIterations, waitTime)
	return waitConverged(ctx, l.logger, "lab "+l.id, maxIterations, waitTime, l.HasConverged)
}

// HasConverged reports whether the controller has finished processing the
// node's pending state changes.
func (n *Node) HasConverged(ctx context.Context) (bool, error) {
	defer n.lab.guard.Lock()()
	if n.stale {
		return false, gone("node", n.id)
	}
	var converged bool
	if err := n.lab.api.Get(ctx, n.url("/check_if_converged"), &converged); err != nil {
		return false, n.fail(err)
	}
	return converged, nil
}

// WaitUntilConverged polls the controller until the node converges.
// Non-positive arguments fall back to the lab's configured wait behavior.
func (n *Node) WaitUntilConverged(ctx context.Context, maxIterations int, waitTime time.Duration) error {
	maxIterations, waitTime = n.lab.waitParams(maxIterations, waitTime)
	return waitConverged(ctx, n.lab.logger, "node "+n.id, maxIterations, waitTime, n.HasConverged)
}

// HasConverged reports whether the controller has finished processing the
// link's pending state changes.
func (l *Link) HasConverged(ctx context.Context) (bool, error) {
	defer l.lab.guard.Lock()()
	if l.stale {
		return false, gone("link", l.id)
	}
	var converged bool
	if err := l.lab.api.Get(ctx, l.url("/check_if_converged"), &converged); err != nil {
		return false, l.fail(err)
	}
	return converged, nil
}

// WaitUntilConverged polls the controller until the link converges.
// Non-positive arguments fall back to the lab's configured wait behavior.
func (l *Link) WaitUntilConverged(ctx context.Context, maxIterations int, waitTime time.Duration) error {
	maxIterations, waitTime = l.lab.waitParams(maxIterations, waitTime)
	return waitConverged(ctx, l.lab.logger, "link "+l.id, maxIterations, waitTime, l.HasConverged)
}
