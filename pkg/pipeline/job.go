package pipeline

import (
	"context"
	"sync"

	"github.com/NERVsystems/osmgrid/pkg/config"
)

const updateBuffer = 64

// Job is a load running in the background.
type Job struct {
	cancel  context.CancelFunc
	updates chan Progress
	done    chan struct{}

	mu     sync.RWMutex
	last   Progress
	result *Result
	err    error
}

// Start runs cfg in a new goroutine. The job stops when ctx is cancelled
// or Cancel is called.
func (l *Loader) Start(ctx context.Context, cfg config.Config) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		cancel:  cancel,
		updates: make(chan Progress, updateBuffer),
		done:    make(chan struct{}),
		last:    Progress{Stage: Idle},
	}

	go func() {
		defer cancel()
		res, err := l.Load(ctx, cfg, j.publish)

		j.mu.Lock()
		j.result, j.err = res, err
		j.mu.Unlock()

		close(j.updates)
		close(j.done)
	}()
	return j
}

// publish records p and forwards it to Updates without blocking; a slow
// reader misses intermediate snapshots.
func (j *Job) publish(p Progress) {
	j.mu.Lock()
	j.last = p
	j.mu.Unlock()

	select {
	case j.updates <- p:
	default:
	}
}

// Updates delivers progress snapshots and is closed once the job is
// terminal.
func (j *Job) Updates() <-chan Progress {
	return j.updates
}

// Progress returns the latest snapshot.
func (j *Job) Progress() Progress {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

// Stage returns the current stage.
func (j *Job) Stage() Stage {
	return j.Progress().Stage
}

// Done is closed when the job is terminal.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel asks the job to stop. A running rasterization completes first.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job is terminal and returns its outcome.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.err
}
