package session

import (
	"context"
	"time"
)

// Task is a handle on a recurring step. Steps never overlap: the next wait
// starts only after the previous step returned.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// schedule runs step after delay and then every interval until step returns
// false or the task is stopped.
func schedule(ctx context.Context, delay, interval time.Duration, step func(context.Context) bool) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			if !step(ctx) || ctx.Err() != nil {
				return
			}
			timer.Reset(interval)
		}
	}()
	return t
}

// Stop cancels the task. It does not wait, so a step may call it.
func (t *Task) Stop() {
	t.cancel()
}

// Done is closed once the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
