package engine

import (
	"fmt"
	"strings"

	"db-relay/internal/datatype"
	"db-relay/internal/schema"
)

// targetType translates the type of c into the registry of the connection.
// Rendering always works on the root of the translated type.
func (e *Engine) targetType(c *schema.Column) *datatype.Type {
	reg := e.conn.Registry()
	if reg == nil {
		return c.Type().Root()
	}
	t, err := reg.Translate(c.Type())
	if err != nil {
		e.log.Warnf("The type %s of the column %s.%s has no match in %s, it is used as it is",
			c.Type().Name(), c.Relation(), c.Name(), e.conn.Name())
		return c.Type().Root()
	}
	return t.Root()
}

// DataTypeClause renders the type of a column for a create statement.
func (e *Engine) DataTypeClause(c *schema.Column) string {
	t := e.targetType(c)
	name := t.Name()

	precision := c.Precision()
	maxPrecision := t.MaxPrecision()
	defaultPrecision := t.DefaultPrecision()
	if defaultPrecision == 0 {
		defaultPrecision = maxPrecision
	}
	if precision != 0 && maxPrecision != 0 && precision > maxPrecision {
		e.log.Warnf("The precision (%d) of the column (%s.%s) is greater than the maximum allowed (%d) for the datastore (%s)",
			precision, c.Relation(), c.Name(), maxPrecision, e.conn.Name())
	}
	scale := c.Scale()
	maxScale := t.MaxScale()
	if scale > maxScale {
		e.log.Warnf("The scale (%d) of the column (%s.%s) is greater than the maximum allowed (%d) for the datastore (%s)",
			scale, c.Relation(), c.Name(), maxScale, e.conn.Name())
	}

	cat := t.Category()
	switch {
	case cat.IsInteger(), bare[cat]:
		return name

	case cat == datatype.TimestampWithTimeZone, cat == datatype.TimeWithTimeZone:
		words := strings.Fields(name)
		if len(words) == 0 {
			return name
		}
		first := words[0]
		if precision != 0 && precision != defaultPrecision {
			first = fmt.Sprintf("%s(%d)", first, precision)
		}
		return strings.Join(append([]string{first}, words[1:]...), " ")

	case cat == datatype.Timestamp:
		if precision != 0 && precision != defaultPrecision {
			return fmt.Sprintf("%s(%d)", name, precision)
		}
		return name

	case lengthOnly[cat]:
		if precision == 0 {
			precision = defaultPrecision
		}
		if precision == defaultPrecision && !t.MandatorySpecifier() {
			return name
		}
		if precision == 0 {
			return name
		}
		return fmt.Sprintf("%s(%d)", name, precision)

	case cat == datatype.Decimal, cat == datatype.Numeric:
		if (precision == 0 || precision == defaultPrecision) && (scale == 0 || scale == maxScale) {
			return name
		}
		if precision == 0 {
			precision = maxPrecision
		}
		return name + precisionScale(precision, scale)

	default:
		if precision > 0 {
			return name + precisionScale(precision, scale)
		}
		return name
	}
}

// bare categories have no precision concept, their name says it all.
var bare = map[*datatype.Category]bool{
	datatype.Real:                         true,
	datatype.DoublePrecision:              true,
	datatype.Date:                         true,
	datatype.Boolean:                      true,
	datatype.XML:                          true,
	datatype.Clob:                         true,
	datatype.NClob:                        true,
	datatype.Blob:                         true,
	datatype.LongCharacterVarying:         true,
	datatype.LongNationalCharacterVarying: true,
	datatype.Other:                        true,
	datatype.JSON:                         true,
	datatype.JSONB:                        true,
}

// lengthOnly categories take one optional length or precision argument.
var lengthOnly = map[*datatype.Category]bool{
	datatype.Time:                     true,
	datatype.CharacterVarying:         true,
	datatype.NationalCharacterVarying: true,
	datatype.Character:                true,
	datatype.NationalCharacter:        true,
	datatype.Bit:                      true,
	datatype.Float:                    true,
}

func precisionScale(precision, scale int) string {
	if scale != 0 {
		return fmt.Sprintf("(%d,%d)", precision, scale)
	}
	return fmt.Sprintf("(%d)", precision)
}

// ColumnClause renders `name type[ not null]`. Primary key members are
// always not null.
func (e *Engine) ColumnClause(c *schema.Column) string {
	s := e.quote(c.Name()) + " " + e.DataTypeClause(c)
	if !c.Nullable() || c.IsPrimaryKey() {
		s += " not null"
	}
	return s
}
