package literal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EDM primitive type names understood by Convert.
const (
	EdmBinary         = "Edm.Binary"
	EdmBoolean        = "Edm.Boolean"
	EdmByte           = "Edm.Byte"
	EdmDate           = "Edm.Date"
	EdmDateTimeOffset = "Edm.DateTimeOffset"
	EdmDecimal        = "Edm.Decimal"
	EdmDouble         = "Edm.Double"
	EdmDuration       = "Edm.Duration"
	EdmGuid           = "Edm.Guid"
	EdmInt16          = "Edm.Int16"
	EdmInt32          = "Edm.Int32"
	EdmInt64          = "Edm.Int64"
	EdmSByte          = "Edm.SByte"
	EdmSingle         = "Edm.Single"
	EdmString         = "Edm.String"
	EdmTimeOfDay      = "Edm.TimeOfDay"
)

// ErrConversion is wrapped by every error returned from Convert.
var ErrConversion = errors.New("literal conversion failed")

// Convert turns URI literal text into a Go value of the given EDM primitive type.
//
//	Edm.Int32 "42"            -> int32(42)
//	Edm.String "'O''Neil'"    -> "O'Neil"
//	Edm.Guid "f89dee73-..."   -> uuid.UUID
//	Edm.Decimal "12.5M"       -> decimal.Decimal
//	Edm.Duration "duration'PT1H'" -> time.Duration
func Convert(text, edmType string) (interface{}, error) {
	if text == "" || text == "null" {
		return nil, conversionError(text, edmType)
	}

	switch edmType {
	case EdmString:
		s, ok := Unquote(text)
		if !ok {
			return nil, conversionError(text, edmType)
		}
		return s, nil
	case EdmBoolean:
		switch strings.ToLower(text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, conversionError(text, edmType)
	case EdmByte:
		v, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return uint8(v), nil
	case EdmSByte:
		v, err := strconv.ParseInt(text, 10, 8)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return int8(v), nil
	case EdmInt16:
		v, err := strconv.ParseInt(text, 10, 16)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return int16(v), nil
	case EdmInt32:
		v, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return int32(v), nil
	case EdmInt64:
		v, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimSuffix(text, "L"), "l"), 10, 64)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmSingle:
		v, err := parseFloat(trimTypeSuffix(text, 'f'), 32)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return float32(v), nil
	case EdmDouble:
		v, err := parseFloat(trimTypeSuffix(text, 'd'), 64)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmDecimal:
		v, err := decimal.NewFromString(trimTypeSuffix(text, 'm'))
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmGuid:
		if len(text) != 36 {
			return nil, conversionError(text, edmType)
		}
		v, err := uuid.Parse(text)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmDate:
		v, err := time.Parse("2006-01-02", text)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmDateTimeOffset:
		v, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmTimeOfDay:
		v, err := parseTimeOfDay(text)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmDuration:
		raw := text
		if inner, ok := unwrapPrefixed(text, "duration"); ok {
			raw = inner
		}
		v, err := ParseISODuration(raw)
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	case EdmBinary:
		inner, ok := unwrapPrefixed(text, "binary")
		if !ok {
			return nil, conversionError(text, edmType)
		}
		v, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(inner, "="))
		if err != nil {
			return nil, conversionError(text, edmType)
		}
		return v, nil
	}

	return nil, fmt.Errorf("%w: unsupported type %s", ErrConversion, edmType)
}

func conversionError(text, edmType string) error {
	return fmt.Errorf("%w: %q is not a valid %s literal", ErrConversion, text, edmType)
}

// Unquote strips the surrounding single quotes of a string literal and resolves
// doubled quotes. It returns false when text is not a well-formed quoted string.
func Unquote(text string) (string, bool) {
	if len(text) < 2 || text[0] != '\'' || text[len(text)-1] != '\'' {
		return "", false
	}
	inner := text[1 : len(text)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\'' {
			if i+1 >= len(inner) || inner[i+1] != '\'' {
				return "", false
			}
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String(), true
}

// unwrapPrefixed unwraps prefix'value' forms such as duration'PT1H'.
func unwrapPrefixed(text, prefix string) (string, bool) {
	if len(text) <= len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
		return "", false
	}
	return Unquote(text[len(prefix):])
}

// trimTypeSuffix removes one trailing type designator such as the M of 12.5M.
func trimTypeSuffix(text string, suffix byte) string {
	switch text {
	case "INF", "-INF", "NaN":
		return text
	}
	if n := len(text); n > 1 && (text[n-1] == suffix || text[n-1] == suffix-'a'+'A') {
		return text[:n-1]
	}
	return text
}

func parseFloat(text string, bitSize int) (float64, error) {
	switch text {
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(text, bitSize)
}

// parseTimeOfDay parses hh:mm[:ss[.fffffff]] into the offset since midnight.
func parseTimeOfDay(text string) (time.Duration, error) {
	layouts := []string{"15:04:05.999999999", "15:04:05", "15:04"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second +
				time.Duration(t.Nanosecond()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", text)
}

// ParseISODuration parses the day-time subset of ISO 8601 durations used by
// Edm.Duration: [-]P[nD][T[nH][nM][n[.n]S]].
func ParseISODuration(text string) (time.Duration, error) {
	s := text
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", text)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	seen := false
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime {
				return 0, fmt.Errorf("invalid duration %q", text)
			}
			inTime = true
			s = s[1:]
			continue
		}

		end := 0
		for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
			end++
		}
		if end == 0 || end == len(s) {
			return 0, fmt.Errorf("invalid duration %q", text)
		}
		value, err := strconv.ParseFloat(s[:end], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", text)
		}

		var unit time.Duration
		switch designator := s[end]; {
		case designator == 'D' && !inTime:
			unit = 24 * time.Hour
		case designator == 'H' && inTime:
			unit = time.Hour
		case designator == 'M' && inTime:
			unit = time.Minute
		case designator == 'S' && inTime:
			unit = time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", text)
		}
		total += time.Duration(value * float64(unit))
		seen = true
		s = s[end+1:]
	}
	if !seen {
		return 0, fmt.Errorf("invalid duration %q", text)
	}
	if negative {
		total = -total
	}
	return total, nil
}
