package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Count is a numeric wire field that keeps its raw JSON token, so a bad
// value is reported against its field instead of failing the whole decode.
type Count struct {
	raw []byte
}

// N builds a Count from an integer.
func N(v int64) Count {
	return Count{raw: []byte(strconv.FormatInt(v, 10))}
}

// Raw builds a Count from an arbitrary JSON token, e.g. `"abc"` or `1.5`.
func Raw(token string) Count {
	return Count{raw: []byte(token)}
}

func (c *Count) UnmarshalJSON(data []byte) error {
	c.raw = append(c.raw[:0], data...)
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("null"), nil
	}
	return c.raw, nil
}

// shape problems, in the order they are checked
const (
	problemNone     = ""
	problemMissing  = RuleRequired
	problemType     = RuleType
	problemFraction = RuleInteger
	problemNegative = RuleNonNegative
	problemRange    = RuleRange
)

// value parses the token as a non-negative integer. Numeric strings are
// accepted the way the web form posts them.
func (c Count) value() (int64, string) {
	token := bytes.TrimSpace(c.raw)
	if len(token) == 0 || bytes.Equal(token, []byte("null")) {
		return 0, problemMissing
	}

	text := string(token)
	if token[0] == '"' {
		var s string
		if err := json.Unmarshal(token, &s); err != nil {
			return 0, problemType
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, problemMissing
		}
	}

	n, err := strconv.ParseInt(text, 10, 64)
	switch {
	case err == nil && n < 0:
		return 0, problemNegative
	case err == nil:
		return n, problemNone
	case errors.Is(err, strconv.ErrRange):
		if strings.HasPrefix(text, "-") {
			return 0, problemNegative
		}
		return 0, problemRange
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, problemType
	}
	if f < 0 {
		return 0, problemNegative
	}
	if f != math.Trunc(f) {
		return 0, problemFraction
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f >= 1<<63 {
		return 0, problemRange
	}
	return int64(f), problemNone
}

// countValue hands the validator the parsed integer, or nil when the token
// has a shape problem that value already reports.
func countValue(field reflect.Value) interface{} {
	c, ok := field.Interface().(Count)
	if !ok {
		return nil
	}
	n, problem := c.value()
	if problem != problemNone {
		return nil
	}
	return n
}
