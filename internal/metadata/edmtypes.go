package metadata

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/nlstn/go-odata-routing/internal/literal"
	"github.com/shopspring/decimal"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	bytesType    = reflect.TypeOf([]byte(nil))
)

// EdmTypeOf maps a Go type to its EDM primitive type name. Pointers map to the
// type they point to.
func EdmTypeOf(t reflect.Type) (string, bool) {
	t = dereferenceType(t)

	switch t {
	case timeType:
		return literal.EdmDateTimeOffset, true
	case durationType:
		return literal.EdmDuration, true
	case uuidType:
		return literal.EdmGuid, true
	case decimalType:
		return literal.EdmDecimal, true
	case bytesType:
		return literal.EdmBinary, true
	}

	switch t.Kind() {
	case reflect.String:
		return literal.EdmString, true
	case reflect.Bool:
		return literal.EdmBoolean, true
	case reflect.Int8:
		return literal.EdmSByte, true
	case reflect.Uint8:
		return literal.EdmByte, true
	case reflect.Int16:
		return literal.EdmInt16, true
	case reflect.Int32, reflect.Uint16:
		return literal.EdmInt32, true
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return literal.EdmInt64, true
	case reflect.Float32:
		return literal.EdmSingle, true
	case reflect.Float64:
		return literal.EdmDouble, true
	}
	return "", false
}

// isPrimitiveStruct reports struct types that map to a primitive EDM type.
func isPrimitiveStruct(t reflect.Type) bool {
	return t == timeType || t == decimalType
}
