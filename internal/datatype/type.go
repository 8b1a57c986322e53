package datatype

import "fmt"

// Key is the identity of a concrete type: the normalized name and the driver
// code. In name-only registries the code part is NoCode.
type Key struct {
	Name string
	Code int
}

func (k Key) String() string {
	if k.Code == NoCode {
		return k.Name
	}
	return fmt.Sprintf("%s (%d)", k.Name, k.Code)
}

// Nullability is the tri-state nullable flag reported by drivers.
type Nullability int

const (
	NullableUnknown Nullability = iota
	Nullable
	NotNull
)

func (n Nullability) String() string {
	switch n {
	case Nullable:
		return "nullable"
	case NotNull:
		return "not null"
	default:
		return "unknown"
	}
}

// Searchable tells which predicates a type supports in a where clause.
type Searchable int

const (
	SearchUnknown Searchable = iota
	SearchNone
	SearchCharOnly // only LIKE
	SearchBasic    // all but LIKE
	SearchFull
)

// Type is a concrete, connection-scoped type. An alias holds a weak
// reference to its root: every attribute is read from the root, except the
// category which an alias may set for itself.
type Type struct {
	reg  *Registry
	key  Key
	name string
	code int

	parent   *Type
	category *Category

	maxPrecision        int
	defaultPrecision    int
	defaultSet          bool
	minScale            int
	maxScale            int
	nullable            Nullability
	caseSensitive       bool
	searchable          Searchable
	unsigned            bool
	fixedPrecisionScale bool
	autoIncrement       bool
	mandatorySpecifier  bool
	literalPrefix       string
	literalSuffix       string
	createParams        string
	priority            Priority
}

// Key returns the type identity.
func (t *Type) Key() Key { return t.key }

// Name is the SQL name as reported by the driver, used when rendering DDL.
func (t *Type) Name() string { return t.name }

// Code is the driver type code.
func (t *Type) Code() int { return t.code }

// Parent returns the root of an alias, nil for a root.
func (t *Type) Parent() *Type { return t.parent }

// IsAlias reports whether the type has a parent.
func (t *Type) IsAlias() bool { return t.parent != nil }

// Root returns the parent for an alias and the type itself otherwise.
func (t *Type) Root() *Type {
	if t.parent != nil {
		return t.parent
	}
	return t
}

// Category returns the own category of an alias if one was set, the root
// category otherwise.
func (t *Type) Category() *Category {
	if t.category != nil {
		return t.category
	}
	if t.parent != nil {
		return t.parent.Category()
	}
	return Other
}

// Class is the host value class of the category.
func (t *Type) Class() ValueClass { return t.Category().Class }

// MaxPrecision is the largest precision, 0 when unbounded or unknown.
// Integer categories without a configured value use their signed width.
func (t *Type) MaxPrecision() int {
	if p := t.Root().maxPrecision; p != 0 {
		return p
	}
	return t.Category().SignedWidth()
}

// DefaultPrecision is the precision the engine assumes when none is given.
func (t *Type) DefaultPrecision() int {
	r := t.Root()
	if r.defaultSet {
		return r.defaultPrecision
	}
	return t.MaxPrecision()
}

func (t *Type) MinScale() int { return t.Root().minScale }
func (t *Type) MaxScale() int { return t.Root().maxScale }
func (t *Type) Nullable() Nullability { return t.Root().nullable }
func (t *Type) CaseSensitive() bool { return t.Root().caseSensitive }
func (t *Type) Searchable() Searchable { return t.Root().searchable }
func (t *Type) Unsigned() bool { return t.Root().unsigned }
func (t *Type) FixedPrecisionScale() bool { return t.Root().fixedPrecisionScale }
func (t *Type) AutoIncrement() bool { return t.Root().autoIncrement }
func (t *Type) MandatorySpecifier() bool { return t.Root().mandatorySpecifier }
func (t *Type) LiteralPrefix() string { return t.Root().literalPrefix }
func (t *Type) LiteralSuffix() string { return t.Root().literalSuffix }
func (t *Type) CreateParams() string { return t.Root().createParams }
func (t *Type) Priority() Priority { return t.Root().priority }
func (t *Type) SameRegistry(o *Type) bool { return o != nil && t.reg == o.reg }
func (t *Type) RegistryName() string { return t.reg.name }

func (t *Type) String() string {
	return fmt.Sprintf("%s (%d)", t.name, t.code)
}

// Info is one row of native type metadata, as a dialect or a driver reports
// it. Zero values mean "not reported".
type Info struct {
	Name string
	Code int

	// Parent names the root type for an alias row.
	Parent string
	// Category overrides the category inferred from Name and Code.
	Category string

	MaxPrecision        int
	DefaultPrecision    int
	MinScale            int
	MaxScale            int
	Nullable            Nullability
	CaseSensitive       bool
	Searchable          Searchable
	Unsigned            bool
	FixedPrecisionScale bool
	AutoIncrement       bool
	MandatorySpecifier  bool
	LiteralPrefix       string
	LiteralSuffix       string
	CreateParams        string
	Priority            Priority
}
