package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"db-relay/internal/errs"
	"db-relay/internal/schema"
)

// Operation is the statement strategy of a transfer.
type Operation int

const (
	OpCopy Operation = iota
	OpInsert
	OpUpdate
	OpUpsert
	OpDelete
	OpMove
)

var operationNames = map[Operation]string{
	OpCopy:   "copy",
	OpInsert: "insert",
	OpUpdate: "update",
	OpUpsert: "upsert",
	OpDelete: "delete",
	OpMove:   "move",
}

// OpNone is the operation of results that come from no transfer, such as
// create or drop.
const OpNone Operation = -1

func (o Operation) String() string {
	if o == OpNone {
		return "none"
	}
	return operationNames[o]
}

// ParseOperation reads an operation name, case-insensitively. Empty means
// copy.
func ParseOperation(s string) (Operation, error) {
	if s == "" {
		return OpCopy, nil
	}
	for op, name := range operationNames {
		if strings.EqualFold(s, name) {
			return op, nil
		}
	}
	return OpCopy, errs.Newf(errs.ErrKindInvalidInput, "unknown transfer operation %q", s)
}

// TargetOps are the operations applied to the target before the transfer.
type TargetOps struct {
	Drop     bool
	Create   bool
	Truncate bool
	// Replace drops the target and creates it from the source.
	Replace bool
}

// ParseTargetOps reads a list such as [drop, create].
func ParseTargetOps(names []string) (TargetOps, error) {
	var t TargetOps
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "drop":
			t.Drop = true
		case "create":
			t.Create = true
		case "truncate":
			t.Truncate = true
		case "replace":
			t.Replace = true
		case "":
		default:
			return t, errs.Newf(errs.ErrKindInvalidInput, "unknown target operation %q", n)
		}
	}
	return t, nil
}

// Mapping tells how source columns find their target column.
type Mapping int

const (
	// MapName matches columns by name.
	MapName Mapping = iota
	// MapPosition matches columns by position.
	MapPosition
	// MapByName uses TransferOptions.ColumnMap, source name to target name.
	MapByName
	// MapByPosition uses TransferOptions.PositionMap, source to target position.
	MapByPosition
)

// ParseMapping reads name, position, map_by_name or map_by_position.
func ParseMapping(s string) (Mapping, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "name":
		return MapName, nil
	case "position":
		return MapPosition, nil
	case "map_by_name":
		return MapByName, nil
	case "map_by_position":
		return MapByPosition, nil
	default:
		return MapName, errs.Newf(errs.ErrKindInvalidInput, "unknown column mapping %q", s)
	}
}

// TransferOptions describe one transfer.
type TransferOptions struct {
	Operation   Operation
	Target      TargetOps
	Mapping     Mapping
	ColumnMap   map[string]string
	PositionMap map[int]int
	// Strict fails on an unmapped source column and on a nullable source
	// column feeding a not null target column.
	Strict bool
}

// Method names how a result was obtained.
type Method string

const (
	MethodCreateAs     Method = "create-as"
	MethodInsertSelect Method = "insert-select"
	MethodUpsert       Method = "upsert"
	MethodUpdate       Method = "update"
	MethodDelete       Method = "delete"
	MethodRename       Method = "rename"
	MethodCreate       Method = "create"
	MethodDrop         Method = "drop"
	MethodTruncate     Method = "truncate"
	MethodAlter        Method = "alter"
)

// Result reports the statements a call executed.
type Result struct {
	Operation  Operation
	Method     Method
	Statements []string
	Rows       int64
}

func (r *Result) String() string {
	if r.Operation == OpNone {
		return fmt.Sprintf("%s: %d statement(s), %d row(s)", r.Method, len(r.Statements), r.Rows)
	}
	return fmt.Sprintf("%s (%s): %d statement(s), %d row(s)", r.Operation, r.Method, len(r.Statements), r.Rows)
}

func (e *Engine) run(ctx context.Context, res *Result, stmts []string) error {
	for _, s := range stmts {
		n, err := e.Exec(ctx, s)
		if err != nil {
			return err
		}
		res.Statements = append(res.Statements, s)
		res.Rows += n
	}
	return nil
}

// columnPair maps one source column onto one target column.
type columnPair struct {
	source *schema.Column
	target *schema.Column
}

// Transfer moves the data of src into tgt on the same connection. Every
// check runs before the first statement: a failed transfer leaves the
// database as it was, except for the target operations it asked for.
func (e *Engine) Transfer(ctx context.Context, src, tgt *schema.Relation, opts TransferOptions) (*Result, error) {
	ok, err := e.Exists(ctx, src)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Newf(errs.ErrKindPrecondition, "The source (%s) does not exist", src)
	}
	targetExists, err := e.Exists(ctx, tgt)
	if err != nil {
		return nil, err
	}

	res := &Result{Operation: opts.Operation}
	log := e.log.With().Str("operation", opts.Operation.String()).Str("source", src.String()).Str("target", tgt.String()).Logger()

	if opts.Operation == OpMove {
		if src.Kind() != schema.KindTable {
			return nil, errs.Newf(errs.ErrKindUnsupported, "The source (%s) is a %s and cannot be moved", src, src.Kind())
		}
		if targetExists && (opts.Target.Drop || opts.Target.Replace) {
			if err := e.run(ctx, res, e.dropTarget(tgt)); err != nil {
				return res, err
			}
		} else if targetExists {
			return nil, errs.Newf(errs.ErrKindPrecondition, "The target (%s) already exists and the source (%s) cannot be renamed to it", tgt, src)
		}
		res.Method = MethodRename
		return res, e.run(ctx, res, []string{e.dialect.RenameStatement(e.TableName(src), e.quote(tgt.Name()))})
	}

	emptied := opts.Target.Drop || opts.Target.Replace || opts.Target.Truncate
	if opts.Operation == OpCopy && targetExists && !emptied {
		n, err := e.Count(ctx, tgt)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, errs.Newf(errs.ErrKindNotEmpty,
				"The target (%s) is not empty (%d rows). A copy requires an empty target, truncate or drop it first", tgt, n)
		}
	}

	// create table as select
	if opts.Operation == OpCopy && (opts.Target.Replace || (!targetExists && len(tgt.Columns()) == 0)) {
		var stmts []string
		if targetExists {
			stmts = append(stmts, e.dropTarget(tgt)...)
		}
		stmts = append(stmts, e.dialect.CreateTableAs(e.TableName(tgt), e.SelectStatement(src, nil)))
		res.Method = MethodCreateAs
		if err := e.run(ctx, res, stmts); err != nil {
			return res, err
		}
		if len(tgt.Columns()) == 0 {
			if err := tgt.CopyStructure(src); err != nil {
				log.Warnf("The structure of the source was not copied to the target: %v", err)
			}
		}
		log.Infof("%d row(s) copied with a create table as", res.Rows)
		return res, nil
	}

	if len(tgt.Columns()) == 0 {
		if err := tgt.CopyDefinition(src, nil); err != nil {
			return nil, err
		}
	}
	pairs, err := e.mapColumns(src, tgt, opts)
	if err != nil {
		return nil, err
	}

	var stmt string
	switch opts.Operation {
	case OpCopy, OpInsert:
		if err := e.checkBeforeInsert(src, tgt, pairs, opts.Strict); err != nil {
			return nil, err
		}
		res.Method = MethodInsertSelect
		stmt = e.insertSelect(src, tgt, pairs)
	case OpUpsert:
		if err := e.checkBeforeInsert(src, tgt, pairs, opts.Strict); err != nil {
			return nil, err
		}
		res.Method = MethodUpsert
		if stmt, err = e.upsertStatement(src, tgt, pairs); err != nil {
			return nil, err
		}
	case OpUpdate:
		res.Method = MethodUpdate
		if stmt, err = e.updateStatement(src, tgt, pairs); err != nil {
			return nil, err
		}
	case OpDelete:
		res.Method = MethodDelete
		if stmt, err = e.deleteStatement(src, tgt, pairs); err != nil {
			return nil, err
		}
	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "the transfer operation %s is not supported", opts.Operation)
	}

	pre, err := e.targetStatements(ctx, tgt, targetExists, opts.Target)
	if err != nil {
		return nil, err
	}
	if err := e.run(ctx, res, pre); err != nil {
		return res, err
	}
	res.Rows = 0
	if err := e.run(ctx, res, []string{stmt}); err != nil {
		return res, err
	}
	log.Infof("%d row(s) affected", res.Rows)
	return res, nil
}

func (e *Engine) dropTarget(tgt *schema.Relation) []string {
	kind := tgt.Kind()
	if kind != schema.KindView {
		kind = schema.KindTable
	}
	r := schema.NewRelation(tgt.Path(), kind, tgt.Types())
	stmt, _, _ := e.DropStatement(r)
	return []string{stmt}
}

// targetStatements builds the target operations: drop, then create, then
// truncate.
func (e *Engine) targetStatements(ctx context.Context, tgt *schema.Relation, exists bool, ops TargetOps) ([]string, error) {
	var stmts []string
	if exists && (ops.Drop || ops.Replace) {
		stmts = append(stmts, e.dropTarget(tgt)...)
		exists = false
	}
	if !exists {
		if !ops.Create && !ops.Replace {
			return nil, errs.Newf(errs.ErrKindPrecondition, "The target (%s) does not exist", tgt)
		}
		for _, fk := range tgt.ForeignKeys() {
			if foreign := fk.ForeignRelation(); foreign != tgt {
				ok, err := e.Exists(ctx, foreign)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, errs.Newf(errs.ErrKindPrecondition, "The foreign table (%s) does not exist", foreign)
				}
			}
		}
		create, err := e.CreateStatements(tgt)
		if err != nil {
			return nil, err
		}
		return append(stmts, create...), nil
	}
	if ops.Truncate {
		if cat := tgt.Catalog(); cat != nil {
			for _, fk := range cat.ReferencesTo(tgt) {
				if fk.Relation() != tgt {
					return nil, errs.Newf(errs.ErrKindPrecondition,
						"The table (%s) cannot be truncated because the table (%s) dependent on it", tgt, fk.Relation())
				}
			}
		}
		stmts = append(stmts, e.dialect.TruncateStatements([]string{e.TableName(tgt)})...)
	}
	return stmts, nil
}

func (e *Engine) mapColumns(src, tgt *schema.Relation, opts TransferOptions) ([]columnPair, error) {
	var pairs []columnPair
	unmapped := func(c *schema.Column) error {
		if opts.Strict {
			return errs.Newf(errs.ErrKindPrecondition,
				"The source column (%s) of (%s) has no target column in (%s)", c.Name(), src, tgt)
		}
		e.log.Warnf("The source column (%s) of (%s) has no target column in (%s), it was skipped", c.Name(), src, tgt)
		return nil
	}

	for _, c := range src.Columns() {
		var target *schema.Column
		var ok bool
		switch opts.Mapping {
		case MapName:
			target, ok = tgt.Column(c.Name())
		case MapPosition:
			target, ok = tgt.ColumnAt(c.Position())
		case MapByName:
			var name string
			if name, ok = lookupName(opts.ColumnMap, c.Name()); ok {
				if target, ok = tgt.Column(name); !ok {
					return nil, errs.Newf(errs.ErrKindPrecondition,
						"The column (%s) mapped from the source column (%s) does not exist in (%s)", name, c.Name(), tgt)
				}
			}
		case MapByPosition:
			var pos int
			if pos, ok = opts.PositionMap[c.Position()]; ok {
				if target, ok = tgt.ColumnAt(pos); !ok {
					return nil, errs.Newf(errs.ErrKindPrecondition,
						"The position (%d) mapped from the source column (%s) does not exist in (%s)", pos, c.Name(), tgt)
				}
			}
		}
		if !ok {
			if err := unmapped(c); err != nil {
				return nil, err
			}
			continue
		}
		pairs = append(pairs, columnPair{source: c, target: target})
	}
	if len(pairs) == 0 {
		return nil, errs.Newf(errs.ErrKindPrecondition, "No column of the source (%s) could be mapped to the target (%s)", src, tgt)
	}
	return pairs, nil
}

func lookupName(m map[string]string, name string) (string, bool) {
	if to, ok := m[name]; ok {
		return to, true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return m[k], true
		}
	}
	return "", false
}

// checkBeforeInsert requires every primary key column of the target to be
// fed, auto-increment ones aside. In strict mode a not null target column
// may not take a nullable source column.
func (e *Engine) checkBeforeInsert(src, tgt *schema.Relation, pairs []columnPair, strict bool) error {
	mapped := make(map[*schema.Column]*schema.Column, len(pairs))
	for _, p := range pairs {
		mapped[p.target] = p.source
	}
	if pk := tgt.PrimaryKey(); pk != nil {
		for _, c := range pk.Columns() {
			if _, ok := mapped[c]; !ok && !c.AutoIncrement() {
				return errs.Newf(errs.ErrKindPrecondition,
					"The primary key column (%s) of the target (%s) is not fed by any column of the source (%s)", c.Name(), tgt, src)
			}
		}
	}
	if !strict {
		return nil
	}
	for _, p := range pairs {
		if !p.target.Nullable() && p.source.Nullable() {
			return errs.Newf(errs.ErrKindPrecondition,
				"The target column (%s) of (%s) is not nullable but the source column (%s) of (%s) is",
				p.target.Name(), tgt, p.source.Name(), src)
		}
	}
	return nil
}

func (e *Engine) insertSelect(src, tgt *schema.Relation, pairs []columnPair) string {
	return e.insertInto(tgt, pairs) + e.selectOf(src, pairs)
}

func (e *Engine) insertInto(tgt *schema.Relation, pairs []columnPair) string {
	targets := make([]*schema.Column, len(pairs))
	for i, p := range pairs {
		targets[i] = p.target
	}
	return "insert into " + e.TableName(tgt) + " ( " + e.columnList(targets) + " ) "
}

func (e *Engine) selectOf(src *schema.Relation, pairs []columnPair) string {
	sources := make([]*schema.Column, len(pairs))
	for i, p := range pairs {
		sources[i] = p.source
	}
	return e.SelectStatement(src, sources)
}

// uniqueTargets returns the mapped pairs whose target column belongs to the
// primary key or a unique key of the target, and the other ones.
func uniqueTargets(tgt *schema.Relation, pairs []columnPair) (unique, other []columnPair) {
	keys := make(map[*schema.Column]bool)
	for _, c := range tgt.UniqueColumns() {
		keys[c] = true
	}
	for _, p := range pairs {
		if keys[p.target] {
			unique = append(unique, p)
		} else {
			other = append(other, p)
		}
	}
	return unique, other
}

// conflictKey picks the first unique key of the target whose columns are
// all fed by the source, else the primary key.
func conflictKey(tgt *schema.Relation, unique []columnPair) []*schema.Column {
	fed := make(map[*schema.Column]bool, len(unique))
	for _, p := range unique {
		fed[p.target] = true
	}
	for _, uk := range tgt.UniqueKeys() {
		covered := true
		for _, c := range uk.Columns() {
			if !fed[c] {
				covered = false
				break
			}
		}
		if covered {
			return uk.Columns()
		}
	}
	if pk := tgt.PrimaryKey(); pk != nil {
		return pk.Columns()
	}
	return nil
}

func (e *Engine) upsertStatement(src, tgt *schema.Relation, pairs []columnPair) (string, error) {
	unique, other := uniqueTargets(tgt, pairs)
	key := conflictKey(tgt, unique)
	if len(key) == 0 {
		e.log.Warnf("The table (%s) has no primary key or uniques keys, the `on conflict` upsert clause was not added", tgt)
		return e.insertSelect(src, tgt, pairs), nil
	}
	keys := make([]string, len(key))
	for i, c := range key {
		keys[i] = e.quote(c.Name())
	}
	set := make([]string, len(other))
	for i, p := range other {
		set[i] = e.quote(p.target.Name())
	}
	clause, ok := e.dialect.ConflictClause(keys, set)
	if !ok {
		return "", errs.Newf(errs.ErrKindUnsupported, "The upsert operation is not supported by %s", e.dialect.Name())
	}
	return e.insertInto(tgt, pairs) + e.dialect.UpsertSelect(e.selectOf(src, pairs)) + clause, nil
}

// matchKey picks the primary key, else the first unique key, whose columns
// are all fed by the source.
func matchKey(tgt *schema.Relation, pairs []columnPair) []columnPair {
	byTarget := make(map[*schema.Column]columnPair, len(pairs))
	for _, p := range pairs {
		byTarget[p.target] = p
	}
	covered := func(cols []*schema.Column) []columnPair {
		out := make([]columnPair, 0, len(cols))
		for _, c := range cols {
			p, ok := byTarget[c]
			if !ok {
				return nil
			}
			out = append(out, p)
		}
		return out
	}
	if pk := tgt.PrimaryKey(); pk != nil {
		if key := covered(pk.Columns()); key != nil {
			return key
		}
	}
	for _, uk := range tgt.UniqueKeys() {
		if key := covered(uk.Columns()); key != nil {
			return key
		}
	}
	return nil
}

func (e *Engine) updateStatement(src, tgt *schema.Relation, pairs []columnPair) (string, error) {
	key := matchKey(tgt, pairs)
	if len(key) == 0 {
		return "", errs.Newf(errs.ErrKindPrecondition,
			"The target (%s) has no primary key or unique columns fed by the source (%s), the rows to update cannot be identified", tgt, src)
	}
	inKey := make(map[*schema.Column]bool, len(key))
	for _, p := range key {
		inKey[p.target] = true
	}
	var targets, sources []*schema.Column
	for _, p := range pairs {
		if !inKey[p.target] {
			targets = append(targets, p.target)
			sources = append(sources, p.source)
		}
	}
	if len(targets) == 0 {
		return "", errs.Newf(errs.ErrKindPrecondition,
			"There is nothing to update: every column of the source (%s) is a key column of the target (%s)", src, tgt)
	}

	targetAlias, sourceAlias := e.quote("target"), e.quote("s")
	table, ok := e.dialect.UpdateTarget(e.TableName(tgt), targetAlias)
	if !ok {
		return "", errs.Newf(errs.ErrKindUnsupported, "The update operation is not supported by %s", e.dialect.Name())
	}
	where := make([]string, len(key))
	for i, p := range key {
		where[i] = targetAlias + "." + e.quote(p.target.Name()) + " = " + sourceAlias + "." + e.quote(p.source.Name())
	}
	return "update " + table +
		" set ( " + e.columnList(targets) + " ) = ( select " + e.columnList(sources) +
		" from " + e.fromClause(src, sourceAlias) +
		" where " + strings.Join(where, " and ") + " )", nil
}

func (e *Engine) deleteStatement(src, tgt *schema.Relation, pairs []columnPair) (string, error) {
	key := matchKey(tgt, pairs)
	if len(key) == 0 {
		return "", errs.Newf(errs.ErrKindPrecondition,
			"The target (%s) has no primary key or unique columns fed by the source (%s), the rows to delete cannot be identified", tgt, src)
	}
	targets := make([]*schema.Column, len(key))
	sources := make([]*schema.Column, len(key))
	for i, p := range key {
		targets[i], sources[i] = p.target, p.source
	}
	return "delete from " + e.TableName(tgt) + " where ( " + e.columnList(targets) + " ) in ( select distinct " +
		e.columnList(sources) + " from " + e.fromClause(src, "") + " )", nil
}
