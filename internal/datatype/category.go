package datatype

import "strings"

// Driver type codes. They follow the X/Open SQL CLI numbering that most
// drivers report; JSON, JSONB and MEDIUMINT have no standard code and use
// private values.
const (
	CodeNull          = 0
	CodeChar          = 1
	CodeNumeric       = 2
	CodeDecimal       = 3
	CodeInteger       = 4
	CodeSmallInt      = 5
	CodeFloat         = 6
	CodeReal          = 7
	CodeDouble        = 8
	CodeVarchar       = 12
	CodeBoolean       = 16
	CodeDatalink      = 70
	CodeDate          = 91
	CodeTime          = 92
	CodeTimestamp     = 93
	CodeOther         = 1111
	CodeStruct        = 2002
	CodeArray         = 2003
	CodeBlob          = 2004
	CodeClob          = 2005
	CodeRef           = 2006
	CodeXML           = 2009
	CodeNClob         = 2011
	CodeTimeTZ        = 2013
	CodeTimestampTZ   = 2014
	CodeJSON          = 3001
	CodeJSONB         = 3002
	CodeMediumInt     = 3003
	CodeLongVarchar   = -1
	CodeBinary        = -2
	CodeVarbinary     = -3
	CodeLongVarbinary = -4
	CodeBigInt        = -5
	CodeTinyInt       = -6
	CodeBit           = -7
	CodeRowID         = -8
	CodeNVarchar      = -9
	CodeNChar         = -15
	CodeLongNVarchar  = -16
)

// NoCode marks a lookup without a driver code.
const NoCode = -1 << 31

// Priority orders types sharing a category or a value class.
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityStandard
	PriorityTop
)

func (p Priority) String() string {
	switch p {
	case PriorityTop:
		return "top"
	case PriorityStandard:
		return "standard"
	default:
		return "default"
	}
}

// Category is one entry of the canonical, vendor-neutral type vocabulary.
type Category struct {
	Name        string
	Code        int
	Class       ValueClass
	Priority    Priority
	Description string
	Aliases     []string
	Supported   bool

	// signedWidth is the digit count of the largest signed value, for the
	// integer family only.
	signedWidth int
}

var (
	Character                    = cat("character", CodeChar, ClassString, PriorityStandard, "Fixed-length blank padded character string", true, "char")
	CharacterVarying             = cat("character varying", CodeVarchar, ClassString, PriorityTop, "Variable-length character string", true, "varchar", "varying character")
	LongCharacterVarying         = cat("long character varying", CodeLongVarchar, ClassString, PriorityStandard, "Very long variable-length character string", true, "long varchar")
	Clob                         = cat("clob", CodeClob, ClassClob, PriorityStandard, "Very long variable-length character string", true)
	NationalCharacter            = cat("national character", CodeNChar, ClassString, PriorityStandard, "Fixed-length text in Unicode character set", true, "nchar")
	NationalCharacterVarying     = cat("national character varying", CodeNVarchar, ClassString, PriorityStandard, "Variable-length text in a Unicode character set", true, "nvarchar")
	LongNationalCharacterVarying = cat("long national character varying", CodeLongNVarchar, ClassString, PriorityStandard, "Very long variable-length text in a Unicode character set", true, "long nvarchar")
	NClob                        = cat("nclob", CodeNClob, ClassClob, PriorityStandard, "Very long variable-length in a Unicode character set", true, "national clob")

	Numeric = cat("numeric", CodeNumeric, ClassDecimal, PriorityStandard, "Exact numeric of selectable precision", true, "num")
	Decimal = cat("decimal", CodeDecimal, ClassDecimal, PriorityTop, "Exact numeric of selectable precision", true, "dec")

	Bit           = cat("bit", CodeBit, ClassBool, PriorityStandard, "Fixed-length bit string", true)
	Binary        = cat("binary", CodeBinary, ClassBytes, PriorityStandard, "Binary data", false)
	Varbinary     = cat("varbinary", CodeVarbinary, ClassBytes, PriorityStandard, "Variable-length binary data", false)
	LongVarbinary = cat("long varbinary", CodeLongVarbinary, ClassBytes, PriorityStandard, "Very long variable-length binary data", false)
	Blob          = cat("blob", CodeBlob, ClassBlob, PriorityStandard, "Large binary objects", false)

	Boolean = cat("boolean", CodeBoolean, ClassBool, PriorityTop, "Logical Boolean (true/false)", true, "bool")

	TinyInt   = intCat("tinyint", CodeTinyInt, ClassInt8, PriorityStandard, "One-byte integer", 4, "int1")
	SmallInt  = intCat("smallint", CodeSmallInt, ClassInt16, PriorityStandard, "Two-byte integer", 5, "int2")
	MediumInt = intCat("mediumint", CodeMediumInt, ClassInt32, PriorityStandard, "Three-byte integer", 9, "int3")
	Integer   = intCat("integer", CodeInteger, ClassInt32, PriorityTop, "Four-byte integer", 10, "int", "int4")
	BigInt    = intCat("bigint", CodeBigInt, ClassInt64, PriorityTop, "Eight-byte integer", 19, "int8")

	DoublePrecision = cat("double precision", CodeDouble, ClassFloat64, PriorityTop, "Double precision floating-point number (8 bytes)", true, "double", "float8")
	Float           = cat("float", CodeFloat, ClassFloat64, PriorityStandard, "Flexible precision floating-point number", true)
	Real            = cat("real", CodeReal, ClassFloat32, PriorityStandard, "Single precision floating-point number (4 bytes)", true, "float4")

	Date                  = cat("date", CodeDate, ClassDate, PriorityStandard, "Calendar date (year, month, day)", true)
	Time                  = cat("time", CodeTime, ClassTime, PriorityStandard, "Time of day without time zone", true, "time without time zone")
	Timestamp             = cat("timestamp", CodeTimestamp, ClassTimestamp, PriorityStandard, "Date and time without time zone", true, "datetime", "timestamp without time zone")
	TimestampWithTimeZone = cat("timestamp with time zone", CodeTimestampTZ, ClassTimestampTZ, PriorityStandard, "Date and time, including time zone", true, "timestamptz")
	TimeWithTimeZone      = cat("time with time zone", CodeTimeTZ, ClassTimeTZ, PriorityStandard, "Time of day, including time zone", true, "timetz")

	XML      = cat("xml", CodeXML, ClassXML, PriorityStandard, "XML data", true)
	JSON     = cat("json", CodeJSON, ClassString, PriorityStandard, "Textual JSON data", true)
	JSONB    = cat("jsonb", CodeJSONB, ClassString, PriorityStandard, "Binary JSON data", true)
	Array    = cat("array", CodeArray, ClassArray, PriorityStandard, "Ordered collection of values", false)
	Struct   = cat("struct", CodeStruct, ClassStruct, PriorityStandard, "Structured data with named fields", false)
	Ref      = cat("ref", CodeRef, ClassRef, PriorityStandard, "Reference to a structured type", false)
	Datalink = cat("datalink", CodeDatalink, ClassURL, PriorityStandard, "Link to external file or resource (URL)", true)
	RowID    = cat("rowid", CodeRowID, ClassRowID, PriorityStandard, "Unique row identifier", true)
	Null     = cat("null", CodeNull, ClassAny, PriorityStandard, "Null", false)
	Other    = cat("other", CodeOther, ClassString, PriorityStandard, "Database specific type", false)
)

// categories in declaration order; lookups scan it so the first declared
// entry wins on duplicate spellings.
var categories = []*Category{
	Character, CharacterVarying, LongCharacterVarying, Clob,
	NationalCharacter, NationalCharacterVarying, LongNationalCharacterVarying, NClob,
	Numeric, Decimal,
	Bit, Binary, Varbinary, LongVarbinary, Blob,
	Boolean,
	TinyInt, SmallInt, MediumInt, Integer, BigInt,
	DoublePrecision, Float, Real,
	Date, Time, Timestamp, TimestampWithTimeZone, TimeWithTimeZone,
	XML, JSON, JSONB, Array, Struct, Ref, Datalink, RowID, Null, Other,
}

func cat(name string, code int, class ValueClass, p Priority, desc string, supported bool, aliases ...string) *Category {
	return &Category{
		Name:        name,
		Code:        code,
		Class:       class,
		Priority:    p,
		Description: desc,
		Aliases:     aliases,
		Supported:   supported,
	}
}

func intCat(name string, code int, class ValueClass, p Priority, desc string, width int, aliases ...string) *Category {
	c := cat(name, code, class, p, desc, true, aliases...)
	c.signedWidth = width
	return c
}

// Categories returns the canonical vocabulary in declaration order.
func Categories() []*Category {
	out := make([]*Category, len(categories))
	copy(out, categories)
	return out
}

// Matches reports whether name is the category name or one of its aliases.
func (c *Category) Matches(name string) bool {
	n := Normalize(name)
	if n == c.Name {
		return true
	}
	for _, a := range c.Aliases {
		if n == a {
			return true
		}
	}
	return false
}

// IsInteger reports whether the category belongs to the integer family.
func (c *Category) IsInteger() bool {
	return c.signedWidth > 0
}

// SignedWidth is the number of digits of the largest signed value of an
// integer category, 0 for the other categories.
func (c *Category) SignedWidth() int {
	return c.signedWidth
}

func (c *Category) String() string {
	return c.Name
}

// CategoryByCode returns the category registered under code.
func CategoryByCode(code int) (*Category, bool) {
	for _, c := range categories {
		if c.Code == code {
			return c, true
		}
	}
	return nil, false
}

// CategoryByName returns the category whose name or alias is name.
func CategoryByName(name string) (*Category, bool) {
	for _, c := range categories {
		if c.Matches(name) {
			return c, true
		}
	}
	return nil, false
}

// Cast maps a (name, code) pair reported by a driver to a category.
//
// The code is tried first, except for the OTHER code: drivers report it for
// every type they cannot classify, so for OTHER the name decides. Anything
// unmatched is OTHER.
func Cast(name string, code int) *Category {
	if code != NoCode && code != CodeOther {
		if c, ok := CategoryByCode(code); ok {
			return c
		}
	}
	if name != "" {
		if c, ok := CategoryByName(name); ok {
			return c
		}
	}
	return Other
}

// Normalize lowers a type name and folds underscores and blank runs into a
// single blank.
func Normalize(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "_", " "))
	return strings.Join(strings.Fields(name), " ")
}
