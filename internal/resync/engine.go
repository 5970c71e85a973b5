package resync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/appshell/internal/remote"
	"github.com/roach88/appshell/internal/schema"
	"github.com/roach88/appshell/internal/store"
)

// ActionRefresh is the API action returning every table's records.
const ActionRefresh = "refresh"

// ErrMalformedResult is returned when the refresh response carries a table in
// a shape other than a list of objects. Nothing is written in that case.
var ErrMalformedResult = errors.New("malformed refresh result")

// Caller performs a remote API call. *remote.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, action string, data url.Values) (remote.Result, error)
}

// Writer is the part of the local store the engine writes through.
// *store.Store satisfies it.
type Writer interface {
	Clear(ctx context.Context, table string) error
	Put(ctx context.Context, table string, rec store.Record) (string, error)
}

// Summary reports what a refresh pass did.
type Summary struct {
	// Written maps each replaced table to its new record count.
	Written map[string]int `json:"written"`
	// Untouched lists tables absent from the response, in declaration order.
	Untouched []string `json:"untouched"`

	Duration time.Duration `json:"duration"`
}

// Engine refreshes all local tables from one API call.
//
// Overlapping Refresh calls are coalesced: while a pass is running, further
// callers wait for it and share its result instead of starting another pass
// that would interleave its clears with the first one.
type Engine struct {
	caller Caller
	writer Writer
	schema *schema.Schema
	logger *slog.Logger
	group  singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine.
func New(caller Caller, writer Writer, s *schema.Schema, opts ...Option) *Engine {
	e := &Engine{
		caller: caller,
		writer: writer,
		schema: s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh replaces every declared table except the identity table with the
// records of one refresh call.
//
// A table missing from the response (or null) keeps its contents; a table
// with an empty list is cleared. The server empties a table by sending [],
// never by leaving it out. Allow-listed date fields are coerced when
// present and truthy. Tables are replaced one after the other without a
// surrounding transaction: when a write fails, the tables before it are
// already replaced, the later ones are stale, and the error is returned.
//
// The pass ignores ctx's cancellation. A cancelled caller stops waiting and
// gets ctx.Err() while the pass finishes for the others.
func (e *Engine) Refresh(ctx context.Context) (Summary, error) {
	pass := context.WithoutCancel(ctx)
	ch := e.group.DoChan(ActionRefresh, func() (any, error) {
		return e.refresh(pass)
	})
	select {
	case <-ctx.Done():
		return Summary{}, fmt.Errorf("refresh: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			e.logger.Debug("refresh shared with concurrent caller")
		}
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

type tableRecords struct {
	table   string
	records []store.Record
}

func (e *Engine) refresh(ctx context.Context) (Summary, error) {
	start := time.Now()

	result, err := e.caller.Call(ctx, ActionRefresh, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("refresh: %w", err)
	}

	sum := Summary{Written: map[string]int{}}
	var plan []tableRecords
	for _, t := range e.schema.Tables() {
		if t.Name == schema.IdentityTable {
			continue
		}
		raw, ok := result[t.Name]
		if !ok || raw == nil {
			sum.Untouched = append(sum.Untouched, t.Name)
			continue
		}
		records, err := e.prepare(t.Name, raw)
		if err != nil {
			return Summary{}, fmt.Errorf("refresh: %w", err)
		}
		plan = append(plan, tableRecords{table: t.Name, records: records})
	}

	for _, p := range plan {
		if err := e.writer.Clear(ctx, p.table); err != nil {
			return Summary{}, fmt.Errorf("refresh: %w", err)
		}
		for _, rec := range p.records {
			if _, err := e.writer.Put(ctx, p.table, rec); err != nil {
				return Summary{}, fmt.Errorf("refresh: %w", err)
			}
		}
		sum.Written[p.table] = len(p.records)
	}

	sum.Duration = time.Since(start)
	e.logger.Info("refresh complete",
		"tables", len(sum.Written),
		"untouched", len(sum.Untouched),
		"duration", sum.Duration)
	return sum, nil
}

// prepare validates one table's payload and returns coerced copies of its
// records. The response itself is never modified.
func (e *Engine) prepare(table string, raw any) ([]store.Record, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: table %s: expected a list, got %T", ErrMalformedResult, table, raw)
	}

	records := make([]store.Record, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: table %s: record %d: expected an object, got %T", ErrMalformedResult, table, i, item)
		}
		rec := make(store.Record, len(obj))
		for field, v := range obj {
			if coerce, ok := e.schema.Coercion(table, field); ok && schema.Truthy(v) {
				cv, err := coerce(v)
				if err != nil {
					return nil, fmt.Errorf("%w: table %s: record %d: field %s: %v", ErrMalformedResult, table, i, field, err)
				}
				v = cv
			}
			rec[field] = v
		}
		records = append(records, rec)
	}
	return records, nil
}
