package schema

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"db-relay/internal/datatype"
	"db-relay/internal/logger"
)

// ObjectRow is one catalog object. Catalog and Remarks may be empty.
type ObjectRow struct {
	Catalog string
	Schema  string
	Name    string
	Kind    string
	Remarks string
}

// ColumnRow is one column as reported by a catalog. TypeCode is
// datatype.NoCode when the catalog reports names only.
type ColumnRow struct {
	Relation      string
	Name          string
	TypeName      string
	TypeCode      int
	Precision     int
	Scale         int
	Nullable      datatype.Nullability
	Position      int
	AutoIncrement bool
	Remarks       string
}

// KeyRow is one column of a primary or unique key.
type KeyRow struct {
	Relation string
	Name     string
	Column   string
	Sequence int
}

// ForeignKeyRow is one column of a foreign key.
type ForeignKeyRow struct {
	Relation        string
	Name            string
	Column          string
	Sequence        int
	ForeignRelation string
	ForeignColumn   string
}

// MetadataSource reads catalog metadata for one schema.
type MetadataSource interface {
	Objects(ctx context.Context, schema string) ([]ObjectRow, error)
	Columns(ctx context.Context, schema string) ([]ColumnRow, error)
	PrimaryKeys(ctx context.Context, schema string) ([]KeyRow, error)
	UniqueKeys(ctx context.Context, schema string) ([]KeyRow, error)
	ForeignKeys(ctx context.Context, schema string) ([]ForeignKeyRow, error)
}

// Reflect builds a catalog from live metadata. Rows for unknown relations
// are ignored; foreign keys that cannot be rebuilt are logged and skipped.
func Reflect(ctx context.Context, src MetadataSource, reg *datatype.Registry, connection, schemaName string, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.L()
	}
	cat := NewCatalog(connection, schemaName, reg, log)

	// --- Objects ---
	objects, err := src.Objects(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	for _, o := range objects {
		if o.Name == "" {
			continue
		}
		r := cat.GetOrCreate(o.Name, ParseKind(o.Kind))
		r.path.Catalog = o.Catalog
		if o.Schema != "" {
			r.path.Schema = o.Schema
		}
		r.comment = o.Remarks
	}

	// --- Columns ---
	columns, err := src.Columns(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	slices.SortStableFunc(columns, func(a, b ColumnRow) int {
		if c := cmp.Compare(strings.ToLower(a.Relation), strings.ToLower(b.Relation)); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	for _, c := range columns {
		r, ok := cat.Relation(c.Relation)
		if !ok || c.Name == "" {
			continue
		}
		code := c.TypeCode
		if c.TypeName == "" && code == 0 {
			code = datatype.CodeOther
		}
		typ, err := reg.Resolve(c.TypeName, code)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve the type of %s.%s: %w", r, c.Name, err)
		}
		// Catalogs report a precision for integers (sometimes in bits) and
		// for unbounded types; neither takes a size specifier.
		precision, scale := c.Precision, c.Scale
		if typ.Category().IsInteger() || (typ.MaxPrecision() == 0 && typ.Class() != datatype.ClassDecimal) {
			precision, scale = 0, 0
		}
		if precision > 0 && scale > precision {
			scale = 0
		}
		_, err = r.GetOrCreateColumn(c.Name, typ,
			WithPrecision(precision),
			WithScale(scale),
			WithNullable(c.Nullable != datatype.NotNull),
			WithAutoIncrement(c.AutoIncrement),
			WithComment(c.Remarks),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to add the column %s.%s: %w", r, c.Name, err)
		}
	}

	// --- Primary keys ---
	pks, err := src.PrimaryKeys(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary keys: %w", err)
	}
	for _, g := range groupKeys(pks) {
		r, ok := cat.Relation(g.relation)
		if !ok {
			continue
		}
		pk, err := r.SetPrimaryKey(g.columns...)
		if err != nil {
			log.Warnf("The primary key %s of %s was skipped: %v", keyLabel(g.name), r, err)
			continue
		}
		pk.Name = g.name
	}

	// --- Unique keys ---
	uks, err := src.UniqueKeys(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique keys: %w", err)
	}
	for _, g := range groupKeys(uks) {
		r, ok := cat.Relation(g.relation)
		if !ok {
			continue
		}
		uk, err := r.AddUniqueKey(g.columns...)
		if err != nil {
			log.Warnf("The unique key %s of %s was skipped: %v", keyLabel(g.name), r, err)
			continue
		}
		uk.Name = g.name
	}

	// --- Foreign keys ---
	fks, err := src.ForeignKeys(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	for _, g := range groupForeignKeys(fks) {
		r, ok := cat.Relation(g.relation)
		if !ok {
			continue
		}
		foreign, ok := cat.Relation(g.foreign)
		if !ok {
			log.With().Str("relation", r.String()).Logger().
				Warnf("The foreign key %s was skipped: the foreign table (%s) is not in the schema %s", keyLabel(g.name), g.foreign, schemaName)
			continue
		}
		fk, err := r.AddForeignKeyTo(foreign, g.columns...)
		if err != nil {
			log.With().Str("relation", r.String()).Logger().
				Warnf("The foreign key %s was skipped: %v", keyLabel(g.name), err)
			continue
		}
		fk.Name = g.name
	}

	return cat, nil
}

type keyGroup struct {
	relation string
	name     string
	foreign  string
	columns  []string
	seq      []int
}

func (g *keyGroup) add(col string, seq int) {
	g.columns = append(g.columns, col)
	g.seq = append(g.seq, seq)
}

// ordered sorts the columns by sequence.
func (g *keyGroup) ordered() {
	idx := make([]int, len(g.columns))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(g.seq[a], g.seq[b]) })
	cols := make([]string, len(idx))
	for i, j := range idx {
		cols[i] = g.columns[j]
	}
	g.columns = cols
}

func groupKeys(rows []KeyRow) []*keyGroup {
	var out []*keyGroup
	index := make(map[string]*keyGroup)
	for _, row := range rows {
		if row.Relation == "" || row.Column == "" {
			continue
		}
		// unnamed keys of one relation are one key
		k := strings.ToLower(row.Relation) + "\x00" + row.Name
		g, ok := index[k]
		if !ok {
			g = &keyGroup{relation: row.Relation, name: row.Name}
			index[k] = g
			out = append(out, g)
		}
		g.add(row.Column, row.Sequence)
	}
	for _, g := range out {
		g.ordered()
	}
	return out
}

func groupForeignKeys(rows []ForeignKeyRow) []*keyGroup {
	var out []*keyGroup
	index := make(map[string]*keyGroup)
	for _, row := range rows {
		if row.Relation == "" || row.Column == "" || row.ForeignRelation == "" {
			continue
		}
		k := strings.ToLower(row.Relation) + "\x00" + row.Name + "\x00" + strings.ToLower(row.ForeignRelation)
		g, ok := index[k]
		if !ok {
			g = &keyGroup{relation: row.Relation, name: row.Name, foreign: row.ForeignRelation}
			index[k] = g
			out = append(out, g)
		}
		g.add(row.Column, row.Sequence)
	}
	for _, g := range out {
		g.ordered()
	}
	return out
}
