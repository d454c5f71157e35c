package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"travelbook/internal/live"
	applog "travelbook/internal/log"

	_ "modernc.org/sqlite"
)

const (
	TableTrips    = "trips"
	TableExpenses = "expenses"
)

// Opener opens a Handle on one kind of backing database.
// The stores never depend on which implementation is in use.
type Opener interface {
	Open(ctx context.Context) (*Handle, error)
}

// FileOpener opens (and creates if needed) a database file on disk.
type FileOpener struct {
	Path string
}

// MemoryOpener opens a private in-memory database. Handles opened with the
// same Name share data while at least one of them is open; an empty Name
// yields a fresh database every time.
type MemoryOpener struct {
	Name string
}

var (
	_ Opener = FileOpener{}
	_ Opener = MemoryOpener{}
)

func (o FileOpener) Open(ctx context.Context) (*Handle, error) {
	if o.Path == "" {
		return nil, fmt.Errorf("open storage: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(o.Path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + o.Path + "?" + q.Encode()

	return open(ctx, dsn, 0)
}

func (o MemoryOpener) Open(ctx context.Context) (*Handle, error) {
	name := o.Name
	if name == "" {
		name = "travelbook-" + uuid.NewString()
	}

	q := url.Values{}
	q.Set("mode", "memory")
	q.Set("cache", "shared")
	q.Add("_pragma", "busy_timeout(5000)")
	dsn := "file:" + url.PathEscape(name) + "?" + q.Encode()

	// Shared-cache tables lock per connection; one connection keeps the
	// engine's single-writer behaviour without SQLITE_LOCKED errors.
	return open(ctx, dsn, 1)
}

// Handle is the open connection to the local database. It exclusively owns
// the *sql.DB; Trip and Expense stores built on it share it read/write.
type Handle struct {
	db       *sql.DB
	queries  *Queries
	registry *live.Registry
}

func open(ctx context.Context, dsn string, maxOpen int) (*Handle, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Storage opened")

	return &Handle{
		db:       db,
		queries:  New(db),
		registry: live.NewRegistry(),
	}, nil
}

// Registry returns the live query registry shared by every store on this handle.
func (h *Handle) Registry() *live.Registry {
	return h.registry
}

// StartPolling refreshes live queries whenever another connection commits to
// the database. The data_version baseline is read before StartPolling
// returns, so subscriptions taken afterwards see every later external commit.
// Polling holds one connection until ctx is done, so it must not be used on a
// single-connection handle. wait blocks until polling has stopped.
func (h *Handle) StartPolling(ctx context.Context, interval time.Duration) (wait func() error, err error) {
	conn, err := h.db.Conn(ctx)
	if err != nil {
		return nil, wrap("poll", "data_version", err)
	}
	last, err := dataVersion(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, wrap("poll", "data_version", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		defer conn.Close()
		h.poll(ctx, conn, last, interval)
		return nil
	})
	return g.Wait, nil
}

// dataVersion only moves for commits made through other connections.
func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

func (h *Handle) poll(ctx context.Context, conn *sql.Conn, last int64, interval time.Duration) {
	logger := applog.For(ctx, applog.ComponentStorage)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, err := dataVersion(ctx, conn)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WarnContext(ctx, "Failed to read data version", applog.FieldError, err)
				continue
			}
			if v != last {
				last = v
				h.registry.Refresh(ctx, TableTrips, TableExpenses)
			}
		}
	}
}

func (h *Handle) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
