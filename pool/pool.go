// Package pool implements the fixed size worker pool used by the trainer and
// the detector. Every job returns an error; errors are collected per Group and
// returned, joined, by the Group's Wait method.
package pool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned for jobs queued on a closed pool.
var ErrClosed = errors.New("pool: queue job on closed pool")

// Job is a single unit of work executed by one of the pool workers.
type Job func() error

type task struct {
	job   Job
	group *Group
}

// Pool is a fixed size set of workers consuming a shared job queue.
// The zero value is not usable, create a pool with New.
type Pool struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []task
	pending int // queued + running
	started bool
	closed  bool

	workers sync.WaitGroup
	def     *Group
}

// New creates a pool with size workers. A size below 1 uses one worker per logical CPU.
// Workers are started lazily on the first queued job.
func New(size int) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)
	p.def = p.NewGroup()
	return p
}

// ThreadCount returns the number of workers.
func (p *Pool) ThreadCount() int {
	return p.size
}

// QueueJob adds a job to the pool's default group. If waitIfBusy is set the
// caller blocks until the number of queued and running jobs drops below the
// worker count.
func (p *Pool) QueueJob(job Job, waitIfBusy bool) {
	p.def.Go(job, waitIfBusy)
}

// WaitAll blocks until every job queued through QueueJob has finished and
// returns their joined errors.
func (p *Pool) WaitAll() error {
	return p.def.Wait()
}

// Close lets the workers drain the queue and stops them.
// Jobs queued afterwards fail with ErrClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.workers.Wait()
}

// NewGroup returns a Group whose jobs run on this pool but are joined separately
// from any other group.
func (p *Pool) NewGroup() *Group {
	return &Group{pool: p}
}

// For runs fn for every index in [from, to) and waits for all of them.
func (p *Pool) For(from, to int, fn func(i int) error) error {
	g := p.NewGroup()
	for i := from; i < to; i++ {
		i := i
		g.Go(func() error { return fn(i) }, true)
	}
	return g.Wait()
}

// InfiniteFor queues slices of sliceSize consecutive indices starting at from
// until the shared cancel flag is raised, then waits for the queued slices.
// Workers check the flag before every index; a job returning an error raises it too.
func (p *Pool) InfiniteFor(from, sliceSize int, fn func(i int, cancel *atomic.Bool) error) error {
	if sliceSize < 1 {
		sliceSize = 1
	}
	var cancel atomic.Bool

	g := p.NewGroup()
	for start := from; !cancel.Load() && !p.isClosed(); start += sliceSize {
		start := start
		g.Go(func() error {
			for i := start; i < start+sliceSize; i++ {
				if cancel.Load() {
					return nil
				}
				if err := fn(i, &cancel); err != nil {
					cancel.Store(true)
					return err
				}
			}
			return nil
		}, true)
	}
	return g.Wait()
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) enqueue(t task, waitIfBusy bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if !p.started {
		p.start()
	}
	for waitIfBusy && p.pending >= p.size && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return false
	}
	p.queue = append(p.queue, t)
	p.pending++
	p.cond.Broadcast()

	return true
}

// start launches the workers. Caller must hold the lock.
func (p *Pool) start() {
	p.started = true
	p.workers.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue[0] = task{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		t.group.done(run(t.job))

		p.mu.Lock()
		p.pending--
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

// run executes the job and converts a panic into an error.
func run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: job panicked: %v", r)
		}
	}()
	return job()
}

// Group tracks a set of jobs queued on a pool and collects their errors.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// Go queues job on the group's pool.
func (g *Group) Go(job Job, waitIfBusy bool) {
	g.wg.Add(1)
	if !g.pool.enqueue(task{job: job, group: g}, waitIfBusy) {
		g.done(ErrClosed)
	}
}

// Wait blocks until every job of the group finished and returns their errors
// joined together, or nil. The collected errors are reset.
func (g *Group) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	err := errors.Join(g.errs...)
	g.errs = nil
	return err
}

func (g *Group) done(err error) {
	if err != nil {
		g.mu.Lock()
		g.errs = append(g.errs, err)
		g.mu.Unlock()
	}
	g.wg.Done()
}
