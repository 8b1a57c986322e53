package schema

import (
	"strings"

	"db-relay/internal/datatype"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
)

// Kind is the catalog object kind of a relation.
type Kind int

const (
	KindTable Kind = iota
	KindView
	KindSystemTable
	KindSystemView
	KindSchema
	KindQuery
	KindUnknown
)

var kindNames = map[Kind]string{
	KindTable:       "TABLE",
	KindView:        "VIEW",
	KindSystemTable: "SYSTEM TABLE",
	KindSystemView:  "SYSTEM VIEW",
	KindSchema:      "SCHEMA",
	KindQuery:       "QUERY",
	KindUnknown:     "UNKNOWN",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseKind reads the object type reported by a catalog. information_schema
// spellings such as BASE TABLE are accepted.
func ParseKind(s string) Kind {
	n := strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
	switch n {
	case "TABLE", "BASE TABLE":
		return KindTable
	case "VIEW":
		return KindView
	case "SYSTEM TABLE":
		return KindSystemTable
	case "SYSTEM VIEW":
		return KindSystemView
	case "SCHEMA":
		return KindSchema
	case "QUERY":
		return KindQuery
	default:
		return KindUnknown
	}
}

// Path locates a relation in a database.
type Path struct {
	Catalog string
	Schema  string
	Name    string
}

func (p Path) String() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Catalog, p.Schema, p.Name} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// Relation is a table-like object: ordered columns plus at most one primary
// key, foreign keys and unique keys.
type Relation struct {
	path    Path
	kind    Kind
	query   string
	comment string

	types   *datatype.Registry
	catalog *Catalog

	columns     []*Column
	byName      map[string]*Column
	primaryKey  *PrimaryKey
	foreignKeys []*ForeignKey
	uniqueKeys  []*UniqueKey
}

// NewRelation creates a detached relation whose types come from reg.
func NewRelation(path Path, kind Kind, reg *datatype.Registry) *Relation {
	return &Relation{
		path:   path,
		kind:   kind,
		types:  reg,
		byName: make(map[string]*Column),
	}
}

// NewQuery creates a QUERY relation over a select statement.
func NewQuery(name, query string, reg *datatype.Registry) *Relation {
	r := NewRelation(Path{Name: name}, KindQuery, reg)
	r.query = query
	return r
}

func (r *Relation) Name() string { return r.path.Name }
func (r *Relation) Path() Path { return r.path }
func (r *Relation) Kind() Kind { return r.kind }
func (r *Relation) Query() string { return r.query }
func (r *Relation) Comment() string { return r.comment }
func (r *Relation) SetComment(c string) { r.comment = c }
func (r *Relation) Types() *datatype.Registry { return r.types }
func (r *Relation) Catalog() *Catalog { return r.catalog }
func (r *Relation) PrimaryKey() *PrimaryKey { return r.primaryKey }
func (r *Relation) ForeignKeys() []*ForeignKey { return append([]*ForeignKey(nil), r.foreignKeys...) }
func (r *Relation) UniqueKeys() []*UniqueKey { return append([]*UniqueKey(nil), r.uniqueKeys...) }
func (r *Relation) String() string { return r.path.String() }

// SetKind changes the kind, used when a relation is materialized.
func (r *Relation) SetKind(k Kind) { r.kind = k }

// SetQuery attaches the select text of a QUERY or VIEW relation.
func (r *Relation) SetQuery(q string) { r.query = q }

func (r *Relation) log() *logger.Logger {
	if r.catalog != nil && r.catalog.log != nil {
		return r.catalog.log
	}
	return logger.L()
}

// Columns returns the columns ordered by position.
func (r *Relation) Columns() []*Column {
	return append([]*Column(nil), r.columns...)
}

// ColumnNames returns the names in position order.
func (r *Relation) ColumnNames() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.name
	}
	return names
}

// Column finds a column by case-insensitive name.
func (r *Relation) Column(name string) (*Column, bool) {
	c, ok := r.byName[strings.ToLower(name)]
	return c, ok
}

// HasColumn reports whether a column with that name exists.
func (r *Relation) HasColumn(name string) bool {
	_, ok := r.Column(name)
	return ok
}

// ColumnAt returns the column at a 1-based position.
func (r *Relation) ColumnAt(position int) (*Column, bool) {
	if position < 1 || position > len(r.columns) {
		return nil, false
	}
	return r.columns[position-1], true
}

// GetOrCreateColumn returns the column named name, creating it at the next
// position when missing. Redefining an existing column with a type of
// another value class is schema drift.
func (r *Relation) GetOrCreateColumn(name string, typ *datatype.Type, opts ...ColumnOption) (*Column, error) {
	if name == "" {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "a column of %s needs a name", r)
	}
	if typ == nil {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "the column %s of %s needs a type", name, r)
	}

	c, ok := r.Column(name)
	if ok {
		if c.typ.Class() != typ.Class() {
			return nil, errs.Newf(errs.ErrKindInvalidInput,
				"the column (%s) of %s already exists with the value class %s and cannot be redefined as %s (%s)",
				c.name, r, c.typ.Class(), typ.Name(), typ.Class())
		}
	} else {
		c = &Column{
			relation: r,
			name:     name,
			typ:      typ,
			position: len(r.columns) + 1,
			nullable: true,
		}
		r.columns = append(r.columns, c)
		r.byName[strings.ToLower(name)] = c
	}

	if err := c.apply(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreateColumnByClass uses the preferred type of the registry for a
// value class.
func (r *Relation) GetOrCreateColumnByClass(name string, class datatype.ValueClass, opts ...ColumnOption) (*Column, error) {
	typ, ok := r.types.ResolveByClass(class)
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no type of value class %s in %s for the column %s", class, r.types.Name(), name)
	}
	return r.GetOrCreateColumn(name, typ, opts...)
}

// GetOrCreateColumnByCode uses the type registered with a driver code.
func (r *Relation) GetOrCreateColumnByCode(name string, code int, opts ...ColumnOption) (*Column, error) {
	return r.GetOrCreateColumn(name, r.types.ResolveByCode(code), opts...)
}

func (r *Relation) columnsNamed(names []string) ([]*Column, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := r.Column(n)
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "the column (%s) does not exist in %s", n, r)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// SetPrimaryKey replaces the primary key.
func (r *Relation) SetPrimaryKey(columns ...string) (*PrimaryKey, error) {
	if len(columns) == 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "a primary key of %s needs at least one column", r)
	}
	cols, err := r.columnsNamed(columns)
	if err != nil {
		return nil, err
	}
	r.primaryKey = &PrimaryKey{relation: r, columns: cols}
	return r.primaryKey, nil
}

// RemovePrimaryKey drops the primary key, if any.
func (r *Relation) RemovePrimaryKey() {
	r.primaryKey = nil
}

// AddForeignKey references target with columns of this relation. Adding the
// same key twice returns the first one.
func (r *Relation) AddForeignKey(target *PrimaryKey, columns ...string) (*ForeignKey, error) {
	if target == nil {
		return nil, errs.Newf(errs.ErrKindModeling, "a foreign key of %s needs a primary key to reference", r)
	}
	if len(columns) == 0 || len(columns) != len(target.columns) {
		return nil, errs.Newf(errs.ErrKindModeling,
			"the foreign key of %s has %d column(s) but the primary key of %s has %d",
			r, len(columns), target.relation, len(target.columns))
	}
	cols, err := r.columnsNamed(columns)
	if err != nil {
		return nil, err
	}

	for _, fk := range r.foreignKeys {
		if fk.target.relation == target.relation && sameColumns(fk.columns, cols) {
			return fk, nil
		}
	}
	fk := &ForeignKey{relation: r, columns: cols, target: target}
	r.foreignKeys = append(r.foreignKeys, fk)
	return fk, nil
}

// AddForeignKeyTo references the primary key of foreign.
func (r *Relation) AddForeignKeyTo(foreign *Relation, columns ...string) (*ForeignKey, error) {
	if foreign == nil {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "a foreign key of %s needs a foreign relation", r)
	}
	if foreign.primaryKey == nil {
		return nil, errs.Newf(errs.ErrKindModeling,
			"the foreign table (%s) has no primary key and cannot be referenced by %s", foreign, r)
	}
	return r.AddForeignKey(foreign.primaryKey, columns...)
}

// DropForeignKey removes fk from the relation.
func (r *Relation) DropForeignKey(fk *ForeignKey) {
	for i, k := range r.foreignKeys {
		if k == fk {
			r.foreignKeys = append(r.foreignKeys[:i], r.foreignKeys[i+1:]...)
			return
		}
	}
}

// AddUniqueKey adds a unique key. The ordered column list is its identity.
func (r *Relation) AddUniqueKey(columns ...string) (*UniqueKey, error) {
	if len(columns) == 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "a unique key of %s needs at least one column", r)
	}
	cols, err := r.columnsNamed(columns)
	if err != nil {
		return nil, err
	}
	for _, uk := range r.uniqueKeys {
		if sameColumns(uk.columns, cols) {
			return uk, nil
		}
	}
	uk := &UniqueKey{relation: r, columns: cols}
	r.uniqueKeys = append(r.uniqueKeys, uk)
	return uk, nil
}

// RemoveUniqueKeys drops every unique key.
func (r *Relation) RemoveUniqueKeys() {
	r.uniqueKeys = nil
}

// Sibling finds a relation of the same catalog.
func (r *Relation) Sibling(name string) (*Relation, bool) {
	if r.catalog == nil {
		return nil, false
	}
	return r.catalog.Relation(name)
}

// UniqueColumns returns the primary key columns followed by the columns of
// every unique key, without duplicates.
func (r *Relation) UniqueColumns() []*Column {
	var out []*Column
	seen := make(map[*Column]bool)
	add := func(cols []*Column) {
		for _, c := range cols {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	if r.primaryKey != nil {
		add(r.primaryKey.columns)
	}
	for _, uk := range r.uniqueKeys {
		add(uk.columns)
	}
	return out
}

func sameColumns(a, b []*Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i].name, b[i].name) {
			return false
		}
	}
	return true
}
