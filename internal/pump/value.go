package pump

import (
	"math/big"

	"db-relay/internal/datatype"

	"github.com/shopspring/decimal"
)

// Normalize converts a value scanned from a driver into the host value of
// class. Drivers return exact numerics as text bytes; those become
// decimal.Decimal. Text bytes of the other string classes become strings.
// Unparseable values pass through unchanged.
func Normalize(v any, class datatype.ValueClass) any {
	switch x := v.(type) {
	case []byte:
		switch class {
		case datatype.ClassDecimal:
			if d, err := decimal.NewFromString(string(x)); err == nil {
				return d
			}
		case datatype.ClassString, datatype.ClassClob, datatype.ClassXML:
			return string(x)
		}
	case string:
		if class == datatype.ClassDecimal {
			if d, err := decimal.NewFromString(x); err == nil {
				return d
			}
		}
	case float64:
		if class == datatype.ClassDecimal {
			return decimal.NewFromFloat(x)
		}
	case *big.Int:
		return decimal.NewFromBigInt(x, 0)
	}
	return v
}

// BoolAsInt turns booleans into 0 and 1 for backends without a boolean
// parameter type.
func BoolAsInt(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
