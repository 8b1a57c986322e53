package datatype

import (
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// ValueClass is the host representation of a column value. Two types with
// the same class can exchange values without conversion.
type ValueClass int

const (
	ClassAny ValueClass = iota
	ClassString
	ClassClob
	ClassDecimal
	ClassBool
	ClassInt8
	ClassInt16
	ClassInt32
	ClassInt64
	ClassFloat32
	ClassFloat64
	ClassBytes
	ClassBlob
	ClassDate
	ClassTime
	ClassTimestamp
	ClassTimestampTZ
	ClassTimeTZ
	ClassXML
	ClassArray
	ClassStruct
	ClassRef
	ClassURL
	ClassRowID
)

var classNames = map[ValueClass]string{
	ClassAny:         "any",
	ClassString:      "string",
	ClassClob:        "clob",
	ClassDecimal:     "decimal",
	ClassBool:        "bool",
	ClassInt8:        "int8",
	ClassInt16:       "int16",
	ClassInt32:       "int32",
	ClassInt64:       "int64",
	ClassFloat32:     "float32",
	ClassFloat64:     "float64",
	ClassBytes:       "bytes",
	ClassBlob:        "blob",
	ClassDate:        "date",
	ClassTime:        "time",
	ClassTimestamp:   "timestamp",
	ClassTimestampTZ: "timestamptz",
	ClassTimeTZ:      "timetz",
	ClassXML:         "xml",
	ClassArray:       "array",
	ClassStruct:      "struct",
	ClassRef:         "ref",
	ClassURL:         "url",
	ClassRowID:       "rowid",
}

func (c ValueClass) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "any"
}

// ClassByName parses the String form of a ValueClass.
func ClassByName(name string) (ValueClass, bool) {
	for c, n := range classNames {
		if n == name {
			return c, true
		}
	}
	return ClassAny, false
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
)

// GoType is the Go type a scanned value of this class is converted to.
func (c ValueClass) GoType() reflect.Type {
	switch c {
	case ClassString, ClassClob, ClassXML, ClassURL:
		return reflect.TypeOf("")
	case ClassDecimal:
		return decimalType
	case ClassBool:
		return reflect.TypeOf(false)
	case ClassInt8:
		return reflect.TypeOf(int8(0))
	case ClassInt16:
		return reflect.TypeOf(int16(0))
	case ClassInt32:
		return reflect.TypeOf(int32(0))
	case ClassInt64:
		return reflect.TypeOf(int64(0))
	case ClassFloat32:
		return reflect.TypeOf(float32(0))
	case ClassFloat64:
		return reflect.TypeOf(float64(0))
	case ClassBytes, ClassBlob, ClassRowID:
		return bytesType
	case ClassDate, ClassTime, ClassTimestamp, ClassTimestampTZ, ClassTimeTZ:
		return timeType
	default:
		return anyType
	}
}
