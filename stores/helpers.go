package stores

import (
	"time"

	"github.com/oarkflow/date"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

// scanTime coerces a raw driver value into a time.Time. sqlite hands
// timestamps back as strings or bytes depending on how they were written.
func scanTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func int64OrNil(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// scanNullableInt64 coerces a raw driver value into *int64 (nil for NULL).
func scanNullableInt64(raw interface{}) *int64 {
	switch v := raw.(type) {
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	case float64:
		n := int64(v)
		return &n
	}
	return nil
}

func sqlNullTimeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
