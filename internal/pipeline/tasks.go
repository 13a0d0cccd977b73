package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"herald/pkg/logging"
)

// TaskGroup supervises detached fire-and-forget work. Each task gets
// the group's context, its own panic boundary, and is waited on during
// shutdown so an exiting process doesn't strand a half-sent post.
type TaskGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logging.Logger
}

func NewTaskGroup(parent context.Context, logger logging.Logger) *TaskGroup {
	ctx, cancel := context.WithCancel(parent)
	return &TaskGroup{ctx: ctx, cancel: cancel, logger: logger}
}

// Go runs fn on its own goroutine. A panic inside fn is logged and
// contained; it never reaches the caller.
func (g *TaskGroup) Go(name string, fn func(ctx context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.WithFields(logging.Fields{
					"task":  name,
					"panic": fmt.Sprintf("%v", r),
				}).Error("Detached task panicked")
			}
		}()
		fn(g.ctx)
	}()
}

// Shutdown waits up to timeout for running tasks to drain, then cancels
// whatever is left.
func (g *TaskGroup) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		g.logger.Warn("Task group drain timed out, cancelling remaining tasks")
	}
	g.cancel()
}
