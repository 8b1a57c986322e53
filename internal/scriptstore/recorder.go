// Package scriptstore captures the statements of a dry run and saves them
// as a script, on disk or in an S3 compatible bucket.
package scriptstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"db-relay/internal/datatype"
	"db-relay/internal/dialect"
	"db-relay/internal/driver"
	"db-relay/internal/schema"

	"github.com/google/uuid"
)

// Recorder is a driver.Conn that records statements instead of running
// them. Metadata and counts are read from the wrapped connection.
type Recorder struct {
	conn    driver.Conn
	id      uuid.UUID
	started time.Time

	mu         sync.Mutex
	statements []string
	assumed    map[string]string
}

var _ driver.Conn = (*Recorder)(nil)

// NewRecorder wraps conn.
func NewRecorder(conn driver.Conn) *Recorder {
	return &Recorder{
		conn:    conn,
		id:      uuid.New(),
		started: time.Now(),
		assumed: make(map[string]string),
	}
}

func (r *Recorder) ID() uuid.UUID { return r.id }

func (r *Recorder) Name() string                 { return r.conn.Name() }
func (r *Recorder) Dialect() dialect.Dialect     { return r.conn.Dialect() }
func (r *Recorder) Schema() string               { return r.conn.Schema() }
func (r *Recorder) Registry() *datatype.Registry { return r.conn.Registry() }
func (r *Recorder) Quoting() bool                { return r.conn.Quoting() }

func (r *Recorder) Types(ctx context.Context) ([]datatype.Info, error) {
	return r.conn.Types(ctx)
}

// Assume makes the named tables exist for the rest of the run, as if an
// earlier recorded statement had created them.
func (r *Recorder) Assume(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.assumed[strings.ToLower(n)] = n
	}
}

// Objects lists the objects of the wrapped connection plus the assumed ones.
func (r *Recorder) Objects(ctx context.Context, schemaName string) ([]schema.ObjectRow, error) {
	rows, err := r.conn.Objects(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(rows))
	for _, o := range rows {
		seen[strings.ToLower(o.Name)] = true
	}
	for key, name := range r.assumed {
		if !seen[key] {
			rows = append(rows, schema.ObjectRow{Schema: schemaName, Name: name, Kind: "TABLE"})
		}
	}
	return rows, nil
}

// Exec records stmt. No row is ever affected.
func (r *Recorder) Exec(ctx context.Context, stmt string) (int64, error) {
	r.mu.Lock()
	r.statements = append(r.statements, stmt)
	r.mu.Unlock()
	return 0, nil
}

func (r *Recorder) QueryInt(ctx context.Context, stmt string) (int64, error) {
	return r.conn.QueryInt(ctx, stmt)
}

// Close does not close the wrapped connection.
func (r *Recorder) Close() error { return nil }

// Statements returns the recorded statements in order.
func (r *Recorder) Statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statements...)
}

// Script renders the statements, each terminated by a semicolon, under a
// comment header.
func (r *Recorder) Script() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "-- db-relay script %s\n", r.id)
	fmt.Fprintf(&b, "-- connection: %s (%s)\n", r.conn.Name(), r.conn.Dialect().Name())
	fmt.Fprintf(&b, "-- generated: %s\n\n", r.started.UTC().Format(time.RFC3339))
	for _, s := range r.Statements() {
		b.WriteString(strings.TrimRight(s, "; \n"))
		b.WriteString(";\n\n")
	}
	return []byte(b.String())
}
