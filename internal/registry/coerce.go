package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

var (
	errWantString  = errors.New("expected a string")
	errWantInteger = errors.New("expected an integer")
	errWantBoolean = errors.New("expected a boolean")
	errWantDate    = errors.New("expected a date (YYYY-MM-DD)")
	errWantDecimal = errors.New("expected a decimal")
	errNotKana     = errors.New("expected katakana")
)

// coerce converts a raw payload value (as produced by JSON, msgpack, or Go
// callers) to the canonical Go type of its field kind.
func coerce(field types.FieldSpec, raw any) (any, error) {
	switch field.Kind {
	case types.FieldText:
		s, ok := raw.(string)
		if !ok {
			return nil, errWantString
		}
		return s, nil
	case types.FieldKana:
		s, ok := raw.(string)
		if !ok {
			return nil, errWantString
		}
		return normalizeKana(s)
	case types.FieldEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, errWantString
		}
		if !slices.Contains(field.Values, s) {
			return nil, fmt.Errorf("value %q not in %v", s, field.Values)
		}
		return s, nil
	case types.FieldInteger:
		return toInt64(raw)
	case types.FieldBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, errWantBoolean
		}
		return b, nil
	case types.FieldDate:
		return toDate(raw)
	case types.FieldDecimal:
		return toDecimal(raw)
	}
	return nil, fmt.Errorf("unknown field kind %q", field.Kind)
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, errWantInteger
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, errWantInteger
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, errWantInteger
		}
		return n, nil
	}
	return 0, errWantInteger
}

func toDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		y, m, d := v.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case string:
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return time.Time{}, errWantDate
		}
		return t, nil
	}
	return time.Time{}, errWantDate
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, errWantDecimal
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, errWantDecimal
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	if n, err := toInt64(raw); err == nil {
		return decimal.NewFromInt(n), nil
	}
	return decimal.Decimal{}, errWantDecimal
}

// normalizeKana folds half-width katakana to full width and accepts only
// katakana, the prolonged sound mark, the middle dot and spaces.
func normalizeKana(s string) (string, error) {
	n := strings.TrimSpace(norm.NFKC.String(s))
	for _, r := range n {
		switch {
		case unicode.In(r, unicode.Katakana):
		case r == 'ー' || r == '・' || r == ' ' || r == '　':
		default:
			return "", errNotKana
		}
	}
	return n, nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(DateLayout)
	case decimal.Decimal:
		return t.String()
	}
	return v
}
