package models

import (
	"database/sql/driver"
	"encoding/json"
)

// StringArray is a JSON-encoded text column holding a string list
// (seeds, scope rules). Chosen over a native Postgres array so the same
// column shape works across any SQL engine with row-level uniqueness
// constraints, a full-text search type, and atomic UPDATE.
type StringArray []string

// Value implements driver.Valuer. A nil or empty slice stores as the
// JSON text "[]" rather than erroring, so zero-value structs round-trip
// cleanly through CreateJob and patch-job-config.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal([]string(a))
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return nil
	}
}
