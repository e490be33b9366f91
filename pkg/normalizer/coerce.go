package normalizer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
)

var (
	errNull = errors.New("null value")
	errType = errors.New("unparseable value")
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func getString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case int, int32, int64:
		return fmt.Sprintf("%d", val)
	default:
		return ""
	}
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, errNull
	case float64:
		if math.IsNaN(val) {
			return 0, errNull
		}
		return val, nil
	case float32:
		return toFloat(float64(val))
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
			return 0, errNull
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errType
		}
		return toFloat(f)
	default:
		return 0, errType
	}
}

func toInt(v interface{}) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errType
	}
	return int(f), nil
}

func toBool(v interface{}) (bool, error) {
	switch val := v.(type) {
	case nil:
		return false, errNull
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "":
			return false, errNull
		case "true", "t", "yes", "y", "1", "1.0":
			return true, nil
		case "false", "f", "no", "n", "0", "0.0":
			return false, nil
		}
		return false, errType
	default:
		f, err := toFloat(v)
		if err != nil {
			return false, err
		}
		if f != 0 && f != 1 {
			return false, errType
		}
		return f == 1, nil
	}
}

func toTime(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, errNull
	case time.Time:
		if val.IsZero() {
			return time.Time{}, errNull
		}
		return val.UTC(), nil
	case int64:
		return time.Unix(val, 0).UTC(), nil
	case int:
		return time.Unix(int64(val), 0).UTC(), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, errNull
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, errType
	default:
		return time.Time{}, errType
	}
}

// toLabels accepts a list value or a comma separated string.
func toLabels(v interface{}) []string {
	var parts []string
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		parts = val
	case []interface{}:
		for _, item := range val {
			parts = append(parts, getString(item))
		}
	default:
		parts = strings.Split(getString(v), ",")
	}

	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func describe(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func mistyped(entity, column string, row int, v interface{}, err error) *errs.SchemaError {
	reason := "mistyped value " + strconv.Quote(describe(v))
	if errors.Is(err, errNull) {
		reason = "null value"
	}
	return &errs.SchemaError{Entity: entity, Column: column, Row: row, Reason: reason}
}
