package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrRegistryClosed is returned by Start after Shutdown.
var ErrRegistryClosed = errors.New("poll registry is shut down")

// PollTask is a reserved, running or finished background poll.
type PollTask struct {
	Domain    string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	result PollResult
}

// Done is closed when the poll has finished or its reservation was released.
func (t *PollTask) Done() <-chan struct{} { return t.done }

// Result returns the poll outcome. Only meaningful after Done is closed.
func (t *PollTask) Result() PollResult {
	<-t.done
	return t.result
}

// PollInfo describes a running poll.
type PollInfo struct {
	Domain    string    `json:"domain"`
	StartedAt time.Time `json:"started_at"`
}

// Registry keys background polls by domain so concurrent onboarding
// requests for one domain share a single poll.
type Registry struct {
	mu     sync.Mutex
	tasks  map[string]*PollTask
	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	base, stop := context.WithCancel(context.Background())
	return &Registry{tasks: make(map[string]*PollTask), base: base, stop: stop}
}

// Start runs fn in the background under key unless a poll for key is
// already reserved or running, in which case that task is returned with
// joined=true.
func (r *Registry) Start(key string, fn func(ctx context.Context) PollResult) (task *PollTask, joined bool, err error) {
	t, joined, err := r.Reserve(key)
	if err != nil || joined {
		return t, joined, err
	}
	r.Launch(t, fn)
	return t, false, nil
}

// Reserve claims key before any work is done for it. The caller that gets
// joined=false owns the task and must either Launch or Release it; every
// later caller joins the same task until it finishes.
func (r *Registry) Reserve(key string) (task *PollTask, joined bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrRegistryClosed
	}
	if t, ok := r.tasks[key]; ok {
		pollsJoined.Inc()
		return t, true, nil
	}

	ctx, cancel := context.WithCancel(r.base)
	t := &PollTask{Domain: key, StartedAt: time.Now().UTC(), ctx: ctx, cancel: cancel, done: make(chan struct{})}
	r.tasks[key] = t
	r.wg.Add(1)
	pollsActive.Inc()
	return t, false, nil
}

// Launch runs fn for a reserved task in the background.
func (r *Registry) Launch(t *PollTask, fn func(ctx context.Context) PollResult) {
	pollsStarted.Inc()
	go func() {
		t.result = fn(t.ctx)
		r.finish(t)
	}()
}

// Release drops a reservation that will not be polled. Joined callers see
// an error outcome carrying cause.
func (r *Registry) Release(t *PollTask, cause error) {
	t.result = PollResult{Domain: t.Domain, Outcome: OutcomeError}
	if cause != nil {
		t.result.Err = cause.Error()
	}
	r.finish(t)
}

func (r *Registry) finish(t *PollTask) {
	t.cancel()
	r.mu.Lock()
	if r.tasks[t.Domain] == t {
		delete(r.tasks, t.Domain)
	}
	r.mu.Unlock()
	pollsActive.Dec()
	close(t.done)
	r.wg.Done()
}

// Get returns the running poll for key.
func (r *Registry) Get(key string) (*PollTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	return t, ok
}

// Cancel aborts the running poll for key and reports whether one existed.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	t, ok := r.tasks[key]
	r.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

// Active lists reserved and running polls ordered by domain.
func (r *Registry) Active() []PollInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PollInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, PollInfo{Domain: t.Domain, StartedAt: t.StartedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Shutdown cancels every poll, refuses new ones and waits for the running
// polls to return or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
