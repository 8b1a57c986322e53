// Package pump moves rows from a RowSource into a BatchSink with one reader
// and a pool of writers, each writer on its own transaction.
package pump

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"db-relay/internal/errs"
	"db-relay/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RowSource produces rows in chunks of at most fetchSize rows.
type RowSource interface {
	Columns() []string
	Read(ctx context.Context, fetchSize int, emit func(rows [][]any) error) error
}

// BatchSink opens one Writer per pump worker.
type BatchSink interface {
	Open(ctx context.Context) (Writer, error)
}

// Writer writes batches into an implicit transaction, begun on the first
// Write after Open, Commit or Rollback.
type Writer interface {
	Write(ctx context.Context, rows [][]any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// Preparer is implemented by sinks that need work done once around a load,
// such as disabling foreign keys.
type Preparer interface {
	Prepare(ctx context.Context) error
	Finish(ctx context.Context) error
}

// Options tunes a run. Zero fields take the DefaultOptions values.
type Options struct {
	FetchSize       int
	BufferSize      int
	BatchSize       int
	Workers         int
	CommitFrequency int
	Strict          bool

	// OnCommit is called with the number of rows made durable by a commit.
	OnCommit func(rows int)
}

func DefaultOptions() Options {
	return Options{
		FetchSize:       1000,
		BufferSize:      10000,
		BatchSize:       500,
		Workers:         4,
		CommitFrequency: 5000,
		Strict:          true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FetchSize <= 0 {
		o.FetchSize = d.FetchSize
	}
	if o.BufferSize <= 0 {
		o.BufferSize = d.BufferSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.CommitFrequency < o.BatchSize {
		o.CommitFrequency = o.BatchSize
	}
	return o
}

// Plan names the unit of work. Limit caps the rows read; 0 reads all.
type Plan struct {
	Name  string
	Limit int64
}

// Report summarizes a run. Written counts committed rows only.
type Report struct {
	RunID    string
	Name     string
	Read     int64
	Written  int64
	Batches  int64
	Commits  int64
	Failures int64
	Duration time.Duration
}

var errLimit = errors.New("row limit reached")

type run struct {
	dst  BatchSink
	opts Options
	log  *logger.Logger
	rows chan []any
	rep  *Report

	mu     sync.Mutex
	failed []error
}

// Run pumps src into dst. In strict mode the first failure cancels the run
// and the failing writer rolls back its uncommitted rows. Otherwise failed
// batches are rolled back, counted and logged, and Run returns an
// aggregate error once the source is drained.
func Run(ctx context.Context, src RowSource, dst BatchSink, plan Plan, opts Options, log *logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.L()
	}
	opts = opts.withDefaults()
	rep := &Report{RunID: uuid.NewString(), Name: plan.Name}
	log = log.With().Str("run", rep.RunID).Str("relation", plan.Name).Logger()
	start := time.Now()
	defer func() { rep.Duration = time.Since(start) }()

	if p, ok := dst.(Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return rep, err
		}
		defer func() {
			if err := p.Finish(context.WithoutCancel(ctx)); err != nil {
				log.Warnf("Load cleanup failed: %v", err)
			}
		}()
	}

	r := &run{
		dst:  dst,
		opts: opts,
		log:  log,
		rows: make(chan []any, opts.BufferSize),
		rep:  rep,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.read(gctx, src, plan.Limit) })
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error { return r.work(gctx) })
	}
	err := g.Wait()

	log.Infof("Pumped %d of %d rows (%d batches, %d commits, %d failed)",
		rep.Written, rep.Read, rep.Batches, rep.Commits, rep.Failures)
	if err != nil {
		return rep, err
	}
	if len(r.failed) > 0 {
		return rep, errs.Wrapf(errs.ErrKindQueryFailed, errors.Join(r.failed...),
			"%d of %d rows failed to load into %s", rep.Failures, rep.Read, plan.Name)
	}
	return rep, nil
}

func (r *run) read(ctx context.Context, src RowSource, limit int64) error {
	defer close(r.rows)
	err := src.Read(ctx, r.opts.FetchSize, func(chunk [][]any) error {
		for _, row := range chunk {
			if limit > 0 && atomic.LoadInt64(&r.rep.Read) >= limit {
				return errLimit
			}
			select {
			case r.rows <- row:
				atomic.AddInt64(&r.rep.Read, 1)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if errors.Is(err, errLimit) {
		return nil
	}
	return err
}

func (r *run) work(ctx context.Context) error {
	w, err := r.dst.Open(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	batch := make([][]any, 0, r.opts.BatchSize)
	pending := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n := len(batch)
		err := w.Write(ctx, batch)
		batch = batch[:0]
		if err != nil {
			lost := n + pending
			pending = 0
			return r.fail(ctx, w, lost, err)
		}
		atomic.AddInt64(&r.rep.Batches, 1)
		pending += n
		if pending >= r.opts.CommitFrequency {
			return r.commit(ctx, w, &pending)
		}
		return nil
	}

	for {
		select {
		case row, ok := <-r.rows:
			if !ok {
				if err := flush(); err != nil {
					return err
				}
				return r.commit(ctx, w, &pending)
			}
			batch = append(batch, row)
			if len(batch) >= r.opts.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			_ = w.Rollback(context.WithoutCancel(ctx))
			return ctx.Err()
		}
	}
}

func (r *run) commit(ctx context.Context, w Writer, pending *int) error {
	if *pending == 0 {
		return nil
	}
	n := *pending
	*pending = 0
	if err := w.Commit(ctx); err != nil {
		return r.fail(ctx, w, n, err)
	}
	atomic.AddInt64(&r.rep.Commits, 1)
	atomic.AddInt64(&r.rep.Written, int64(n))
	if r.opts.OnCommit != nil {
		r.opts.OnCommit(n)
	}
	return nil
}

// fail rolls back the writer's transaction. lost is the number of rows the
// rollback discards.
func (r *run) fail(ctx context.Context, w Writer, lost int, err error) error {
	if rbErr := w.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
		r.log.Warnf("Rollback failed: %v", rbErr)
	}
	atomic.AddInt64(&r.rep.Failures, int64(lost))
	if r.opts.Strict {
		return err
	}
	r.log.Errorf("Batch of %d rows failed: %v", lost, err)
	r.mu.Lock()
	r.failed = append(r.failed, err)
	r.mu.Unlock()
	return nil
}
