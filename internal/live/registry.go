// Package live implements reactive read queries over the local store.
//
// Every query is registered against the tables it reads. Writers call
// Registry.Invalidate after a successful write and each subscription on an
// affected table re-runs its query and pushes the fresh result to its
// subscriber.
package live

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	applog "travelbook/internal/log"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// refreshLimit bounds how many subscriptions re-run their query at once.
const refreshLimit = 4

// Change describes a single committed write.
type Change struct {
	Table     string
	Op        string
	RowID     int64
	Timestamp time.Time
}

// Hook observes every change passed to Invalidate, after subscriptions were refreshed.
type Hook func(ctx context.Context, c Change)

// Registry tracks active subscriptions per table.
type Registry struct {
	mu    sync.Mutex
	next  uint64
	subs  map[string]map[uint64]func()
	hooks []Hook
}

func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[string]map[uint64]func()),
	}
}

// Subscribe registers refresh to run whenever one of tables is invalidated.
// The returned function removes the registration; calling it twice is safe.
func (r *Registry) Subscribe(refresh func(), tables ...string) (unsubscribe func()) {
	r.mu.Lock()
	r.next++
	id := r.next
	for _, table := range tables {
		if r.subs[table] == nil {
			r.subs[table] = make(map[uint64]func())
		}
		r.subs[table][id] = refresh
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for _, table := range tables {
				delete(r.subs[table], id)
				if len(r.subs[table]) == 0 {
					delete(r.subs, table)
				}
			}
		})
	}
}

// OnInvalidate adds a hook called for every change.
func (r *Registry) OnInvalidate(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Active returns the number of subscriptions registered on table.
func (r *Registry) Active(table string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[table])
}

// Invalidate re-runs every subscription touching the changed tables and waits
// for them to finish, then notifies hooks. A subscription reading several of
// the changed tables is refreshed once.
func (r *Registry) Invalidate(ctx context.Context, changes ...Change) {
	if len(changes) == 0 {
		return
	}

	tables := make([]string, 0, len(changes))
	for _, c := range changes {
		tables = append(tables, c.Table)
	}

	r.mu.Lock()
	hooks := append([]Hook(nil), r.hooks...)
	r.mu.Unlock()

	n := r.refresh(tables)
	applog.For(ctx, applog.ComponentLive).DebugContext(ctx, "Live queries refreshed",
		"changes", len(changes),
		"subscriptions", n)

	for _, c := range changes {
		if c.Timestamp.IsZero() {
			c.Timestamp = time.Now()
		}
		for _, h := range hooks {
			h(ctx, c)
		}
	}
}

// Refresh re-runs every subscription on tables without notifying hooks. It is
// meant for writes committed by another process, which hooks never observed.
func (r *Registry) Refresh(ctx context.Context, tables ...string) {
	n := r.refresh(tables)
	applog.For(ctx, applog.ComponentLive).DebugContext(ctx, "Live queries refreshed for external change",
		"subscriptions", n)
}

func (r *Registry) refresh(tables []string) int {
	r.mu.Lock()
	seen := make(map[uint64]struct{})
	var refreshes []func()
	for _, table := range tables {
		for id, refresh := range r.subs[table] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			refreshes = append(refreshes, refresh)
		}
	}
	r.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(refreshLimit)
	for _, refresh := range refreshes {
		refresh := refresh
		g.Go(func() error {
			refresh()
			return nil
		})
	}
	_ = g.Wait()
	return len(refreshes)
}
