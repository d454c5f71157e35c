package live

import (
	"context"
	"sync"
)

// Query is a read that can be run once or subscribed to.
type Query[T any] struct {
	registry *Registry
	tables   []string
	run      func(ctx context.Context) (T, error)
}

// NewQuery binds run to the tables it reads.
func NewQuery[T any](r *Registry, run func(ctx context.Context) (T, error), tables ...string) *Query[T] {
	return &Query[T]{registry: r, tables: tables, run: run}
}

// Get runs the query once without subscribing.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	return q.run(ctx)
}

// Subscribe runs the query, delivers the result as the first emission and
// keeps re-delivering after every write to the query's tables until the
// subscription is cancelled or ctx is done.
//
// Delivery keeps only the latest result: a subscriber that falls behind skips
// intermediate snapshots but never misses the most recent one.
func (q *Query[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	s := &Subscription[T]{
		ctx:     ctx,
		run:     q.run,
		updates: make(chan T, 1),
		errs:    make(chan error, 1),
	}

	// Register before the first read so a write racing with it is not lost.
	s.unsubscribe = q.registry.Subscribe(s.refresh, q.tables...)

	s.refreshMu.Lock()
	initial, err := q.run(ctx)
	if err != nil {
		s.refreshMu.Unlock()
		s.unsubscribe()
		return nil, err
	}
	s.deliver(initial)
	s.refreshMu.Unlock()

	// The AfterFunc may already be cancelling on another goroutine.
	stop := context.AfterFunc(ctx, s.Cancel)
	s.mu.Lock()
	s.stopAfter = stop
	s.mu.Unlock()
	return s, nil
}

// Subscription is one live view of a Query.
type Subscription[T any] struct {
	ctx         context.Context
	run         func(ctx context.Context) (T, error)
	unsubscribe func()

	refreshMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	stopAfter func() bool
	updates   chan T
	errs      chan error
}

// Updates emits the current result set after subscribing and after every relevant write.
// It is closed on cancellation.
func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Errors emits failures of re-runs. The subscription stays active after an error.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errs
}

// Cancel stops the subscription. No emission follows and the query is no longer re-run.
func (s *Subscription[T]) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.updates)
	close(s.errs)
	stop := s.stopAfter
	s.mu.Unlock()

	s.unsubscribe()
	if stop != nil {
		stop()
	}
}

func (s *Subscription[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription[T]) refresh() {
	// Serialized so a slower, older read cannot overwrite a newer one.
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.isClosed() {
		return
	}
	v, err := s.run(s.ctx)
	if err != nil {
		s.fail(err)
		return
	}
	s.deliver(v)
}

func (s *Subscription[T]) deliver(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.errs:
	default:
	}
	s.errs <- err
}
