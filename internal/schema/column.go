package schema

import (
	"maps"

	"db-relay/internal/datatype"
	"db-relay/internal/errs"
)

// Column belongs to exactly one relation. Its position is set when it is
// created and never changes.
type Column struct {
	relation *Relation
	name     string
	typ      *datatype.Type
	position int

	precision     int
	scale         int
	nullable      bool
	autoIncrement bool
	generated     bool
	comment       string
	attrs         map[string]any
}

func (c *Column) Relation() *Relation { return c.relation }
func (c *Column) Name() string { return c.name }
func (c *Column) Type() *datatype.Type { return c.typ }
func (c *Column) Position() int { return c.position }
func (c *Column) Precision() int { return c.precision }
func (c *Column) Scale() int { return c.scale }
func (c *Column) Nullable() bool { return c.nullable }
func (c *Column) AutoIncrement() bool { return c.autoIncrement }
func (c *Column) Generated() bool { return c.generated }
func (c *Column) Comment() string { return c.comment }
func (c *Column) Class() datatype.ValueClass { return c.typ.Class() }

// Attr returns an extension attribute.
func (c *Column) Attr(key string) (any, bool) {
	v, ok := c.attrs[key]
	return v, ok
}

// Attrs returns a copy of the extension attributes.
func (c *Column) Attrs() map[string]any {
	return maps.Clone(c.attrs)
}

// Set applies options to an existing column.
func (c *Column) Set(opts ...ColumnOption) error {
	return c.apply(opts)
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (c *Column) IsPrimaryKey() bool {
	pk := c.relation.primaryKey
	if pk == nil {
		return false
	}
	for _, k := range pk.columns {
		if k == c {
			return true
		}
	}
	return false
}

func (c *Column) apply(opts []ColumnOption) error {
	for _, o := range opts {
		o(c)
	}
	if c.precision > 0 && c.scale > c.precision {
		return errs.Newf(errs.ErrKindInvalidInput,
			"the scale (%d) of the column %s.%s is greater than its precision (%d)",
			c.scale, c.relation, c.name, c.precision)
	}
	return nil
}

// ColumnOption sets a column attribute.
type ColumnOption func(*Column)

func WithPrecision(p int) ColumnOption { return func(c *Column) { c.precision = p } }

func WithScale(s int) ColumnOption { return func(c *Column) { c.scale = s } }

func WithNullable(n bool) ColumnOption { return func(c *Column) { c.nullable = n } }

func WithAutoIncrement(a bool) ColumnOption { return func(c *Column) { c.autoIncrement = a } }

func WithGenerated(g bool) ColumnOption { return func(c *Column) { c.generated = g } }

func WithComment(s string) ColumnOption { return func(c *Column) { c.comment = s } }

// WithAttr sets an extension attribute, nil deletes it.
func WithAttr(key string, v any) ColumnOption {
	return func(c *Column) {
		if v == nil {
			delete(c.attrs, key)
			return
		}
		if c.attrs == nil {
			c.attrs = make(map[string]any)
		}
		c.attrs[key] = v
	}
}

// withDefinitionOf copies everything but the name, type and position.
func withDefinitionOf(src *Column) ColumnOption {
	return func(c *Column) {
		c.precision = src.precision
		c.scale = src.scale
		c.nullable = src.nullable
		c.autoIncrement = src.autoIncrement
		c.generated = src.generated
		c.comment = src.comment
		c.attrs = maps.Clone(src.attrs)
	}
}
