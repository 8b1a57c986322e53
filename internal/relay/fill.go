package relay

import (
	"context"
	"fmt"

	"db-relay/internal/engine"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/pump"
	"db-relay/internal/schema"
)

// FillOptions tune a fill.
type FillOptions struct {
	Options
	// Count is the number of rows generated per relation.
	Count int
	// Seed makes the generated rows repeatable; 0 picks a random seed.
	Seed int64
	// Clean truncates the relations before filling them.
	Clean bool
}

// Fill generates rows into relations, parents first, so that foreign keys
// reference rows that exist. A relation that fails is reported and the
// next one is filled; Fill returns an error when any relation failed.
func Fill(ctx context.Context, db Endpoint, relations []*schema.Relation, opts FillOptions, log *logger.Logger) ([]*Result, error) {
	if log == nil {
		log = logger.L()
	}
	e := engine.New(db, log, opts.Engine)
	ordered := schema.SortByDependencies(tablesOf(relations, log))

	if opts.Clean && len(ordered) > 0 {
		if _, err := e.Truncate(ctx, ordered); err != nil {
			return nil, err
		}
	}

	pool := pump.NewKeyPool()
	filled := make(map[*schema.Relation]bool, len(ordered))
	for _, r := range ordered {
		filled[r] = true
	}
	for _, r := range ordered {
		for _, fk := range r.ForeignKeys() {
			parent := fk.ForeignRelation()
			if filled[parent] || pool.Len(parent.Name()) > 0 {
				continue
			}
			if err := loadKeys(ctx, e, db, pool, parent); err != nil {
				return nil, err
			}
		}
	}

	var results []*Result
	failed := 0
	for _, r := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		gen := pump.NewGenerator(r, opts.Count, pool, opts.Seed, log)
		cols := make([]*schema.Column, 0, len(gen.Columns()))
		for _, name := range gen.Columns() {
			c, _ := r.Column(name)
			cols = append(cols, c)
		}
		sink := db.Sink(e.TableName(r), e.QuoteColumns(cols), false)
		res, err := run(ctx, e, gen, sink, r, int64(gen.Count()), opts.Options, log)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if res.Err != nil {
			failed++
			log.With().Str("relation", r.Name()).Err(res.Err).Logger().Error("Fill failed")
			continue
		}
		// Keys the database assigned are only known once the rows are in.
		if pool.Len(r.Name()) == 0 {
			if err := loadKeys(ctx, e, db, pool, r); err != nil {
				return results, err
			}
		}
	}
	if failed > 0 {
		return results, errs.Newf(errs.ErrKindQueryFailed, "%d of %d relation(s) failed to fill", failed, len(ordered))
	}
	return results, nil
}

// tablesOf keeps the tables; views and queries cannot be filled.
func tablesOf(relations []*schema.Relation, log *logger.Logger) []*schema.Relation {
	out := make([]*schema.Relation, 0, len(relations))
	for _, r := range relations {
		if r.Kind() != schema.KindTable {
			log.Warnf("The relation (%s) is a %s and is not filled", r, r.Kind())
			continue
		}
		out = append(out, r)
	}
	return out
}

// loadKeys reads the primary key tuples of rel into pool.
func loadKeys(ctx context.Context, e *engine.Engine, db Endpoint, pool *pump.KeyPool, rel *schema.Relation) error {
	pk := rel.PrimaryKey()
	if pk == nil {
		return nil
	}
	if err := pool.Load(ctx, rel.Name(), db.Source(e.SelectStatement(rel, pk.Columns()))); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("cannot read the keys of %s", rel), err)
	}
	return nil
}
