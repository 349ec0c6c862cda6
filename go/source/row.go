// Package source fetches mapping rows from their configured origin: a JSON
// file for development and tests, or a Snowflake table, stream or query.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Row is one source row, keyed by column name. Values live in the JSON data
// model: string, bool, nil, json.Number, []interface{} and
// map[string]interface{}.
type Row map[string]interface{}

// ReadFileRows loads rows from a file holding a JSON array of objects.
func ReadFileRows(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rows file: %w", err)
	}
	defer file.Close()

	var dec = json.NewDecoder(file)
	dec.UseNumber()

	var raw []interface{}
	if err = dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing rows from %s: %w", path, err)
	}
	var rows = make([]Row, len(raw))
	for i, elem := range raw {
		obj, ok := elem.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: row %d is not a JSON object", path, i)
		}
		rows[i] = Row(obj)
	}
	return rows, nil
}

// coerceValue maps a scanned warehouse cell into the JSON data model.
// Timestamps become RFC 3339 strings in UTC, and textual cells that hold a
// complete JSON document are decoded, so VARIANT, OBJECT and ARRAY columns
// arrive structured.
func coerceValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []byte:
		return coerceText(string(v))
	case string:
		return coerceText(v)
	default:
		return v
	}
}

func coerceText(s string) interface{} {
	var dec = json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return s
	}
	// Trailing content means the text merely starts with a JSON value.
	if dec.More() {
		return s
	}
	return v
}
