package pump_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/pump"
)

type sliceSource struct {
	rows [][]any
}

func (s *sliceSource) Columns() []string { return []string{"id"} }

func (s *sliceSource) Read(ctx context.Context, fetchSize int, emit func([][]any) error) error {
	for i := 0; i < len(s.rows); i += fetchSize {
		end := min(i+fetchSize, len(s.rows))
		if err := emit(s.rows[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func rowsUpTo(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{i + 1}
	}
	return out
}

// memorySink keeps committed rows; a row equal to failOn fails its batch.
type memorySink struct {
	mu        sync.Mutex
	committed []any
	prepared  bool
	finished  bool
	failOn    any
}

func (s *memorySink) Prepare(ctx context.Context) error {
	s.prepared = true
	return nil
}

func (s *memorySink) Finish(ctx context.Context) error {
	s.finished = true
	return nil
}

func (s *memorySink) Open(ctx context.Context) (pump.Writer, error) {
	return &memoryWriter{sink: s}, nil
}

type memoryWriter struct {
	sink    *memorySink
	pending []any
}

func (w *memoryWriter) Write(ctx context.Context, rows [][]any) error {
	for _, r := range rows {
		if w.sink.failOn != nil && r[0] == w.sink.failOn {
			return errors.New("duplicate key")
		}
		w.pending = append(w.pending, r[0])
	}
	return nil
}

func (w *memoryWriter) Commit(ctx context.Context) error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.committed = append(w.sink.committed, w.pending...)
	w.pending = nil
	return nil
}

func (w *memoryWriter) Rollback(ctx context.Context) error {
	w.pending = nil
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func TestRunMovesEveryRow(t *testing.T) {
	src := &sliceSource{rows: rowsUpTo(1234)}
	dst := &memorySink{}
	var progress int
	var mu sync.Mutex
	opts := pump.Options{
		FetchSize: 100, BufferSize: 50, BatchSize: 10, Workers: 3, CommitFrequency: 40, Strict: true,
		OnCommit: func(n int) {
			mu.Lock()
			progress += n
			mu.Unlock()
		},
	}

	rep, err := pump.Run(context.Background(), src, dst, pump.Plan{Name: "orders"}, opts, logger.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Read != 1234 || rep.Written != 1234 {
		t.Errorf("Expected 1234 rows read and written, got %d/%d", rep.Read, rep.Written)
	}
	if len(dst.committed) != 1234 || progress != 1234 {
		t.Errorf("Expected 1234 committed rows, got %d (progress %d)", len(dst.committed), progress)
	}
	if !dst.prepared || !dst.finished {
		t.Error("Expected the sink to be prepared and finished")
	}
	if rep.RunID == "" {
		t.Error("Expected a run id")
	}
}

func TestRunLimit(t *testing.T) {
	dst := &memorySink{}
	rep, err := pump.Run(context.Background(), &sliceSource{rows: rowsUpTo(100)}, dst,
		pump.Plan{Name: "t", Limit: 25}, pump.Options{FetchSize: 10, Workers: 1}, logger.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Written != 25 {
		t.Errorf("Expected 25 rows, got %d", rep.Written)
	}
}

func TestRunStrictStopsOnFailure(t *testing.T) {
	dst := &memorySink{failOn: 7}
	rep, err := pump.Run(context.Background(), &sliceSource{rows: rowsUpTo(5000)}, dst,
		pump.Plan{Name: "t"}, pump.Options{FetchSize: 10, BufferSize: 10, BatchSize: 5, Workers: 1, Strict: true}, logger.Nop())
	if err == nil {
		t.Fatal("Expected an error")
	}
	if rep.Read == 5000 {
		t.Error("Expected the reader to stop early")
	}
	for _, v := range dst.committed {
		if v == 7 {
			t.Error("The failed batch must not be committed")
		}
	}
}

func TestRunNonStrictContinues(t *testing.T) {
	dst := &memorySink{failOn: 7}
	rep, err := pump.Run(context.Background(), &sliceSource{rows: rowsUpTo(100)}, dst,
		pump.Plan{Name: "t"}, pump.Options{FetchSize: 10, BatchSize: 5, CommitFrequency: 5, Workers: 1, Strict: false}, logger.Nop())
	if !errs.IsQueryFailed(err) {
		t.Fatalf("Expected an aggregate query error, got %v", err)
	}
	if rep.Read != 100 {
		t.Errorf("Expected the whole source to be read, got %d", rep.Read)
	}
	if rep.Failures != 5 || rep.Written != 95 {
		t.Errorf("Expected 5 failed and 95 written, got %d/%d", rep.Failures, rep.Written)
	}
}
