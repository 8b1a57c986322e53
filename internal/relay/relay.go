// Package relay moves rows between connections, or from a generator into
// one, through the pump. Structure is handled by the engine of the target.
package relay

import (
	"context"
	"fmt"
	"strings"

	"db-relay/internal/driver"
	"db-relay/internal/engine"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/pump"
	"db-relay/internal/schema"
)

// Endpoint is a connection rows are read from or written to.
type Endpoint interface {
	driver.Conn
	Source(query string) pump.RowSource
	Sink(table string, columns []string, identity bool) pump.BatchSink
}

// Progress follows the rows committed per relation.
type Progress interface {
	Start(relation string, total int)
	Add(relation string, rows int)
}

// Status of one relation after a run.
type Status string

const (
	StatusOK      Status = "OK"
	StatusMissing Status = "MISSING DATA"
	StatusFailed  Status = "FAILED"
)

// Result is the outcome for one relation. Actual is measured by counting
// the target before and after the run.
type Result struct {
	Relation string
	Target   int64
	Actual   int64
	Status   Status
	Report   *pump.Report
	Err      error
}

func (r *Result) String() string {
	return fmt.Sprintf("%s: %d rows (target %d) %s", r.Relation, r.Actual, r.Target, r.Status)
}

// Options tune a copy or a fill.
type Options struct {
	Transfer engine.TransferOptions
	Pump     pump.Options
	Engine   engine.Options
	Progress Progress
}

// Copy pumps the rows of from, on src, into to, on dst. Only the COPY and
// INSERT operations run across connections. The target operations of the
// transfer options apply to to before the first row is read, once every
// check has passed.
func Copy(ctx context.Context, src, dst Endpoint, from, to *schema.Relation, opts Options, log *logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.L()
	}
	op := opts.Transfer.Operation
	if op != engine.OpCopy && op != engine.OpInsert {
		return nil, errs.Newf(errs.ErrKindUnsupported,
			"The %s operation needs the source and the target on the same connection", op)
	}
	srcEng := engine.New(src, log, opts.Engine)
	dstEng := engine.New(dst, log, opts.Engine)

	ok, err := srcEng.Exists(ctx, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Newf(errs.ErrKindPrecondition, "The source (%s) does not exist", from)
	}
	plan, err := planTarget(ctx, dstEng, from, to, opts.Transfer)
	if err != nil {
		return nil, err
	}
	srcCols, dstCols, err := pairColumns(from, to, opts.Transfer.Strict, log)
	if err != nil {
		return nil, err
	}
	identity := false
	for _, c := range dstCols {
		if c.AutoIncrement() {
			identity = true
		}
	}

	var total int64 = -1
	if from.Kind() != schema.KindQuery {
		if total, err = srcEng.Count(ctx, from); err != nil {
			return nil, err
		}
	}
	if err := plan.apply(ctx, dstEng, to); err != nil {
		return nil, err
	}
	sink := dst.Sink(dstEng.TableName(to), dstEng.QuoteColumns(dstCols), identity)
	res, err := run(ctx, dstEng, src.Source(srcEng.SelectStatement(from, srcCols)), sink, to, total, opts, log)
	if err != nil {
		return res, err
	}
	return res, res.Err
}

// targetPlan lists the statements run on the target before the rows.
type targetPlan struct {
	drop     bool
	truncate bool
	create   bool
}

// planTarget checks the target operations against the target and, when the
// target is to be created, defines it from from. Nothing runs on the
// target.
func planTarget(ctx context.Context, e *engine.Engine, from, to *schema.Relation, t engine.TransferOptions) (targetPlan, error) {
	var p targetPlan
	exists, err := e.Exists(ctx, to)
	if err != nil {
		return p, err
	}
	if exists && (t.Target.Drop || t.Target.Replace) {
		p.drop = true
		exists = false
	}
	if exists {
		if t.Target.Truncate {
			p.truncate = true
			return p, nil
		}
		if t.Operation == engine.OpCopy {
			n, err := e.Count(ctx, to)
			if err != nil {
				return p, err
			}
			if n > 0 {
				return p, errs.Newf(errs.ErrKindNotEmpty,
					"The target (%s) is not empty (%d rows). A copy requires an empty target, truncate or drop it first", to, n)
			}
		}
		return p, nil
	}

	if t.Operation != engine.OpCopy && !t.Target.Create && !t.Target.Replace {
		return p, errs.Newf(errs.ErrKindPrecondition, "The target (%s) does not exist", to)
	}
	if len(to.Columns()) == 0 {
		if from.Kind() == schema.KindQuery || len(from.Columns()) == 0 {
			return p, errs.Newf(errs.ErrKindPrecondition,
				"The target (%s) does not exist and cannot be created from the query (%s) of another connection", to, from.Name())
		}
		if err := to.CopyDefinition(from, nil); err != nil {
			return p, err
		}
	}
	if _, err := e.CreateStatements(to); err != nil {
		return p, err
	}
	for _, fk := range to.ForeignKeys() {
		foreign := fk.ForeignRelation()
		if foreign == to {
			continue
		}
		ok, err := e.Exists(ctx, foreign)
		if err != nil {
			return p, err
		}
		if !ok {
			return p, errs.Newf(errs.ErrKindPrecondition,
				"The foreign table (%s) of the target (%s) does not exist", foreign, to)
		}
	}
	p.create = true
	return p, nil
}

func (p targetPlan) apply(ctx context.Context, e *engine.Engine, to *schema.Relation) error {
	if p.drop {
		if _, err := e.Drop(ctx, to); err != nil {
			return err
		}
	}
	if p.truncate {
		if _, err := e.Truncate(ctx, []*schema.Relation{to}); err != nil {
			return err
		}
	}
	if p.create {
		if _, err := e.Create(ctx, to); err != nil {
			return err
		}
	}
	return nil
}

// pairColumns maps the columns of from onto the columns of to by name. A
// query source without known columns feeds every target column in order.
func pairColumns(from, to *schema.Relation, strict bool, log *logger.Logger) (src, dst []*schema.Column, err error) {
	if len(from.Columns()) == 0 {
		return nil, to.Columns(), nil
	}
	for _, c := range from.Columns() {
		t, ok := to.Column(c.Name())
		if !ok {
			for _, tc := range to.Columns() {
				if strings.EqualFold(tc.Name(), c.Name()) {
					t, ok = tc, true
					break
				}
			}
		}
		if !ok {
			if strict {
				return nil, nil, errs.Newf(errs.ErrKindPrecondition,
					"The source column (%s) of (%s) has no column in the target (%s)", c.Name(), from, to)
			}
			log.Warnf("The source column (%s) of (%s) has no column in the target (%s) and is not copied", c.Name(), from, to)
			continue
		}
		src = append(src, c)
		dst = append(dst, t)
	}
	if len(dst) == 0 {
		return nil, nil, errs.Newf(errs.ErrKindPrecondition, "No column of (%s) maps onto (%s)", from, to)
	}
	return src, dst, nil
}

// run pumps src into sink and measures what reached to. A pump failure is
// kept on the result; only a failure to count is returned.
func run(ctx context.Context, e *engine.Engine, src pump.RowSource, sink pump.BatchSink, to *schema.Relation, total int64, opts Options, log *logger.Logger) (*Result, error) {
	res := &Result{Relation: to.Name(), Target: total}
	before, err := e.Count(ctx, to)
	if err != nil {
		return res, err
	}

	popts := opts.Pump
	if p := opts.Progress; p != nil {
		p.Start(to.Name(), int(total))
		name := to.Name()
		popts.OnCommit = func(rows int) { p.Add(name, rows) }
	}
	res.Report, res.Err = pump.Run(ctx, src, sink, pump.Plan{Name: to.Name()}, popts, log)

	after, err := e.Count(context.WithoutCancel(ctx), to)
	if err != nil {
		return res, err
	}
	res.Actual = after - before
	switch {
	case res.Err != nil:
		res.Status = StatusFailed
	case total >= 0 && res.Actual < total:
		res.Status = StatusMissing
	default:
		res.Status = StatusOK
	}
	if total < 0 {
		res.Target = res.Actual
	}
	return res, nil
}
