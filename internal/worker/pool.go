package worker

import (
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// Pool runs fire-and-forget background jobs. Each job carries its own panic
// boundary so a failing ingestion cannot take down the serving process or
// its sibling jobs.
type Pool struct {
	inner *ants.Pool
}

func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		size = 8
	}
	inner, err := ants.NewPool(size, ants.WithPanicHandler(func(v interface{}) {
		slog.Error("background job panicked", "panic", v)
	}))
	if err != nil {
		return nil, err
	}
	return &Pool{inner: inner}, nil
}

// Submit schedules job for execution. The caller's contract is acknowledged,
// not completed: errors inside the job are the job's to log.
func (p *Pool) Submit(job func()) error {
	return p.inner.Submit(job)
}

func (p *Pool) Running() int {
	return p.inner.Running()
}

// Release waits for no one; queued jobs still running are abandoned at
// process shutdown.
func (p *Pool) Release() {
	p.inner.Release()
}
