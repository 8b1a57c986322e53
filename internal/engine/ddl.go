package engine

import (
	"context"
	"strings"

	"db-relay/internal/errs"
	"db-relay/internal/schema"
)

// CreateStatements builds the statements creating rel: the create table
// with its columns, then one alter statement per primary, foreign and
// unique key. Dialects that cannot add constraints afterwards get them
// inside the create table.
func (e *Engine) CreateStatements(rel *schema.Relation) ([]string, error) {
	switch rel.Kind() {
	case schema.KindView, schema.KindQuery:
		if rel.Query() == "" {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "the view (%s) has no query", rel)
		}
		return []string{"create view " + e.TableName(rel) + " as " + rel.Query()}, nil
	case schema.KindSchema:
		return []string{"create schema " + e.quote(rel.Name())}, nil
	case schema.KindTable:
	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "the object (%s) has a type of (%s) and cannot be created", rel, rel.Kind())
	}

	cols := rel.Columns()
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "the table (%s) has no columns definitions and cannot be created", rel)
	}
	clauses := make([]string, len(cols))
	for i, c := range cols {
		clauses[i] = e.ColumnClause(c)
	}
	table := e.TableName(rel)

	if e.dialect.InlineConstraints() {
		clauses = append(clauses, e.inlineKeyClauses(rel)...)
		return []string{"create table " + table + " (\n" + strings.Join(clauses, ",\n") + "\n)"}, nil
	}

	stmts := []string{"create table " + table + " (\n" + strings.Join(clauses, ",\n") + "\n)"}
	if pk := rel.PrimaryKey(); pk != nil {
		stmts = append(stmts, "ALTER TABLE "+table+" ADD "+e.constraint(pk.Name)+
			"PRIMARY KEY ("+e.columnList(pk.Columns())+")")
	}
	for _, fk := range rel.ForeignKeys() {
		stmts = append(stmts, "ALTER TABLE "+table+" ADD "+e.constraint(fk.Name)+
			"FOREIGN KEY ("+e.columnList(fk.Columns())+") REFERENCES "+
			e.TableName(fk.ForeignRelation())+" ("+e.columnList(fk.Target().Columns())+")")
	}
	for _, uk := range rel.UniqueKeys() {
		stmts = append(stmts, "ALTER TABLE "+table+" ADD "+e.constraint(uk.Name)+
			"UNIQUE ("+e.columnList(uk.Columns())+")")
	}
	return stmts, nil
}

func (e *Engine) inlineKeyClauses(rel *schema.Relation) []string {
	var out []string
	if pk := rel.PrimaryKey(); pk != nil {
		out = append(out, "primary key ("+e.columnList(pk.Columns())+")")
	}
	for _, fk := range rel.ForeignKeys() {
		out = append(out, "foreign key ("+e.columnList(fk.Columns())+") references "+
			e.quote(fk.ForeignRelation().Name())+" ("+e.columnList(fk.Target().Columns())+")")
	}
	for _, uk := range rel.UniqueKeys() {
		out = append(out, "unique ("+e.columnList(uk.Columns())+")")
	}
	return out
}

func (e *Engine) constraint(name string) string {
	if name == "" {
		return ""
	}
	return "CONSTRAINT " + e.quote(name) + " "
}

// Create creates rel. Every table referenced by a foreign key must already
// exist; this is checked before any statement runs.
func (e *Engine) Create(ctx context.Context, rel *schema.Relation) (*Result, error) {
	for _, fk := range rel.ForeignKeys() {
		foreign := fk.ForeignRelation()
		if foreign == rel {
			continue
		}
		ok, err := e.Exists(ctx, foreign)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Newf(errs.ErrKindPrecondition,
				"The foreign table (%s) does not exist. It's referenced by the foreign key (%s) of the table (%s)",
				foreign, keyName(fk.Name), rel)
		}
	}
	stmts, err := e.CreateStatements(rel)
	if err != nil {
		return nil, err
	}
	res := &Result{Operation: OpNone, Method: MethodCreate}
	return res, e.run(ctx, res, stmts)
}

// CreateView creates a view from a query relation under its name.
func (e *Engine) CreateView(ctx context.Context, rel *schema.Relation) (*Result, error) {
	if rel.Query() == "" {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "the relation (%s) has no query to create a view from", rel)
	}
	res := &Result{Operation: OpNone, Method: MethodCreate}
	return res, e.run(ctx, res, []string{"create view " + e.TableName(rel) + " as " + rel.Query()})
}

// DropStatement returns the statement dropping rel. ok is false when the
// kind of rel is not dropped.
func (e *Engine) DropStatement(rel *schema.Relation) (stmt string, ok bool, err error) {
	switch rel.Kind() {
	case schema.KindTable:
		return "drop table " + e.TableName(rel), true, nil
	case schema.KindView:
		return "drop view " + e.TableName(rel), true, nil
	case schema.KindSchema:
		return "drop schema " + e.quote(rel.Name()), true, nil
	case schema.KindSystemTable, schema.KindSystemView:
		e.log.Warnf("The object (%s) have a type of (%s) and was not dropped", rel, rel.Kind())
		return "", false, nil
	default:
		if e.opts.Strict {
			return "", false, errs.Newf(errs.ErrKindUnsupported, "The object (%s) have a type of (%s) that cannot be dropped", rel, rel.Kind())
		}
		e.log.Warnf("The object (%s) have a type of (%s) that cannot be dropped, it was skipped", rel, rel.Kind())
		return "", false, nil
	}
}

// Drop drops rel. System objects are skipped with a warning.
func (e *Engine) Drop(ctx context.Context, rel *schema.Relation) (*Result, error) {
	stmt, ok, err := e.DropStatement(rel)
	if err != nil {
		return nil, err
	}
	res := &Result{Operation: OpNone, Method: MethodDrop}
	if !ok {
		return res, nil
	}
	return res, e.run(ctx, res, []string{stmt})
}

// DropIfExists drops rel when it exists and reports whether it did.
func (e *Engine) DropIfExists(ctx context.Context, rel *schema.Relation) (bool, error) {
	ok, err := e.Exists(ctx, rel)
	if err != nil || !ok {
		return false, err
	}
	res, err := e.Drop(ctx, rel)
	if err != nil {
		return false, err
	}
	return len(res.Statements) > 0, nil
}

// DropAll drops the relations, dependent tables first.
func (e *Engine) DropAll(ctx context.Context, relations []*schema.Relation) (*Result, error) {
	sorted := schema.SortByDependencies(relations)
	res := &Result{Operation: OpNone, Method: MethodDrop}
	for i := len(sorted) - 1; i >= 0; i-- {
		stmt, ok, err := e.DropStatement(sorted[i])
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		if err := e.run(ctx, res, []string{stmt}); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Truncate empties the tables in one batch. A table referenced by a foreign
// key of a table outside the batch is refused, whether or not the database
// would enforce it.
func (e *Engine) Truncate(ctx context.Context, relations []*schema.Relation) (*Result, error) {
	if len(relations) == 0 {
		return &Result{Operation: OpNone, Method: MethodTruncate}, nil
	}
	batch := make(map[*schema.Relation]bool, len(relations))
	for _, r := range relations {
		if r.Kind() != schema.KindTable {
			return nil, errs.Newf(errs.ErrKindUnsupported, "The object (%s) is not a table but a %s and cannot be truncated", r, r.Kind())
		}
		batch[r] = true
	}
	names := make([]string, len(relations))
	for i, r := range relations {
		if cat := r.Catalog(); cat != nil {
			for _, fk := range cat.ReferencesTo(r) {
				dependent := fk.Relation()
				if !batch[dependent] {
					return nil, errs.Newf(errs.ErrKindPrecondition,
						"The table (%s) cannot be truncated because the table (%s) dependent on it and is not in the tables to truncate. Add the table (%s) into the tables to truncate or delete the foreign key (%s)",
						r, dependent, dependent, keyName(fk.Name))
				}
			}
		}
		names[i] = e.TableName(r)
	}
	res := &Result{Operation: OpNone, Method: MethodTruncate}
	return res, e.run(ctx, res, e.dialect.TruncateStatements(names))
}

// DropNotNull makes every non-key, not-null column of rel nullable.
func (e *Engine) DropNotNull(ctx context.Context, rel *schema.Relation) (*Result, error) {
	table := e.TableName(rel)
	var stmts []string
	for _, c := range rel.Columns() {
		if c.Nullable() || c.IsPrimaryKey() {
			continue
		}
		stmt, ok := e.dialect.DropNotNullStatement(table, e.quote(c.Name()), e.DataTypeClause(c))
		if !ok {
			return nil, errs.Newf(errs.ErrKindUnsupported, "%s cannot drop the not null constraint of a column", e.dialect.Name())
		}
		stmts = append(stmts, stmt)
	}
	res := &Result{Operation: OpNone, Method: MethodAlter}
	return res, e.run(ctx, res, stmts)
}

// Delete removes every row of rel.
func (e *Engine) Delete(ctx context.Context, rel *schema.Relation) (*Result, error) {
	res := &Result{Operation: OpNone, Method: MethodDelete}
	return res, e.run(ctx, res, []string{"delete from " + e.TableName(rel)})
}

func keyName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}
