package storage

import (
	"context"
	"database/sql"
	"errors"

	"travelbook/internal/core"
	"travelbook/internal/live"
	applog "travelbook/internal/log"
)

// TripStore maps core.Trip to the trips table.
type TripStore struct {
	queries  *Queries
	registry *live.Registry
}

func NewTripStore(h *Handle) *TripStore {
	return &TripStore{queries: h.queries, registry: h.Registry()}
}

// Create inserts t, ignoring t.ID, and returns the id assigned by the database.
func (s *TripStore) Create(ctx context.Context, t core.Trip) (int64, error) {
	id, err := s.queries.CreateTrip(ctx, tripParams(t))
	if err != nil {
		return 0, wrap("create", TableTrips, err)
	}

	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Trip created",
		applog.FieldTripID, id,
		"name", t.Name,
		"destination", t.Destination)

	s.registry.Invalidate(ctx, live.Change{Table: TableTrips, Op: live.OpCreate, RowID: id})
	return id, nil
}

// Update overwrites every field of the row with t.ID. A missing row is not an error.
func (s *TripStore) Update(ctx context.Context, t core.Trip) error {
	n, err := s.queries.UpdateTrip(ctx, UpdateTripParams{CreateTripParams: tripParams(t), ID: t.ID})
	if err != nil {
		return wrap("update", TableTrips, err)
	}

	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Trip updated", applog.FieldTripID, t.ID, "rows", n)

	s.registry.Invalidate(ctx, live.Change{Table: TableTrips, Op: live.OpUpdate, RowID: t.ID})
	return nil
}

// Delete removes the trip. Expenses that reference it are left untouched.
func (s *TripStore) Delete(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteTrip(ctx, id)
	if err != nil {
		return wrap("delete", TableTrips, err)
	}

	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Trip deleted", applog.FieldTripID, id, "rows", n)

	s.registry.Invalidate(ctx, live.Change{Table: TableTrips, Op: live.OpDelete, RowID: id})
	return nil
}

// ByID looks a trip up once. ok is false when no such trip exists.
func (s *TripStore) ByID(ctx context.Context, id int64) (core.Trip, bool, error) {
	row, err := s.queries.GetTrip(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Trip{}, false, nil
	}
	if err != nil {
		return core.Trip{}, false, wrap("get", TableTrips, err)
	}
	t, err := row.toTrip()
	if err != nil {
		return core.Trip{}, false, wrap("decode", TableTrips, err)
	}
	return t, true, nil
}

// All lists every trip by ascending id and re-emits on every write to trips.
func (s *TripStore) All() *live.Query[[]core.Trip] {
	return live.NewQuery(s.registry, func(ctx context.Context) ([]core.Trip, error) {
		return s.list(ctx, "list", s.queries.ListTrips)
	}, TableTrips)
}

// Active lists trips whose date range contains today, reading the clock on
// every run. A nil clock uses core.Today.
func (s *TripStore) Active(today func() core.Date) *live.Query[[]core.Trip] {
	if today == nil {
		today = core.Today
	}
	return live.NewQuery(s.registry, func(ctx context.Context) ([]core.Trip, error) {
		return s.list(ctx, "list active", func(ctx context.Context) ([]TripRow, error) {
			return s.queries.ListActiveTrips(ctx, today().String())
		})
	}, TableTrips)
}

func (s *TripStore) list(ctx context.Context, op string, fetch func(context.Context) ([]TripRow, error)) ([]core.Trip, error) {
	rows, err := fetch(ctx)
	if err != nil {
		return nil, wrap(op, TableTrips, err)
	}
	trips, err := toTrips(rows)
	if err != nil {
		return nil, wrap("decode", TableTrips, err)
	}
	return trips, nil
}
