package dedupe

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one candidate or reference record. An absent key means "no value".
//
// No schema is enforced. The detector reads the properties named by the field
// table and by custom fields; [PropID], [PropName] and [PropSource] are used to
// describe matches when present.
type Record map[string]string

// Get returns the value of key and whether it holds any non-blank text.
func (r Record) Get(key string) (string, bool) {
	v, ok := r[key]
	if !ok || strings.TrimSpace(v) == "" {
		return v, false
	}
	return v, true
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsBlank reports whether r has no key with non-blank text.
func (r Record) IsBlank() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ID returns the record identifier, or "" when absent.
func (r Record) ID() string {
	return strings.TrimSpace(r[PropID])
}

// DisplayName returns the record's name for match display.
func (r Record) DisplayName() string {
	if v, ok := r.Get(PropName); ok {
		return strings.TrimSpace(v)
	}
	if v, ok := r.Get("customerName"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Source returns where the record came from, or "" when unknown.
func (r Record) Source() string {
	return strings.TrimSpace(r[PropSource])
}

// RecordFromMap converts decoded JSON (or any loosely typed bag) into a Record.
// nil values are dropped; numbers, booleans and other scalars use their
// string form.
func RecordFromMap(m map[string]any) Record {
	rec := make(Record, len(m))
	for k, v := range m {
		s, ok := stringify(v)
		if !ok {
			continue
		}
		rec[k] = s
	}
	return rec
}

func stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}
