// Package mapping projects source rows into the node and edge records that
// feed graph write batches.
package mapping

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/source"
)

// Node is one projected node record: its merge key and the full property map,
// key property included.
type Node struct {
	Key   interface{}
	Props map[string]interface{}
}

// Edge is one projected edge record. From and To hold the endpoint match
// properties, Key is the optional edge identity value, and Props the edge
// properties.
type Edge struct {
	From  map[string]interface{}
	To    map[string]interface{}
	Key   interface{}
	Props map[string]interface{}
}

// Nodes projects rows through a node mapping. A row missing the key column or
// any declared property column fails the projection; a present-but-null cell
// is a value like any other and carries through.
func Nodes(rows []source.Row, m *config.NodeMapping) ([]Node, error) {
	var out = make([]Node, 0, len(rows))
	for idx, row := range rows {
		var key, ok = row[m.Key.Column]
		if !ok {
			return nil, fmt.Errorf("row %d is missing key column %q", idx, m.Key.Column)
		}
		var props = make(map[string]interface{}, len(m.Properties)+1)
		for name, spec := range m.Properties {
			value, ok := row[spec.Column]
			if !ok {
				return nil, fmt.Errorf("row %d is missing column %q for property %q", idx, spec.Column, name)
			}
			props[name] = value
		}
		// The key property always wins over a colliding properties entry.
		props[m.Key.Property] = key
		out = append(out, Node{Key: key, Props: props})
	}
	return out, nil
}

// Edges projects rows through an edge mapping. A row missing any endpoint
// match column, the edge key column when one is configured, or a declared
// property column fails the projection.
func Edges(rows []source.Row, m *config.EdgeMapping) ([]Edge, error) {
	var out = make([]Edge, 0, len(rows))
	for idx, row := range rows {
		var from, err = endpointValues(row, m.From.MatchOn)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", idx, err)
		}
		to, err := endpointValues(row, m.To.MatchOn)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", idx, err)
		}
		var key interface{}
		if m.Key != nil {
			var ok bool
			if key, ok = row[m.Key.Column]; !ok {
				return nil, fmt.Errorf("row %d is missing column %q for the edge key", idx, m.Key.Column)
			}
		}
		var props = make(map[string]interface{}, len(m.Properties))
		for name, spec := range m.Properties {
			value, ok := row[spec.Column]
			if !ok {
				return nil, fmt.Errorf("row %d is missing column %q for property %q", idx, spec.Column, name)
			}
			props[name] = value
		}
		out = append(out, Edge{From: from, To: to, Key: key, Props: props})
	}
	return out, nil
}

func endpointValues(row source.Row, matchOn []config.MatchOn) (map[string]interface{}, error) {
	var values = make(map[string]interface{}, len(matchOn))
	for _, mo := range matchOn {
		var value, ok = row[mo.Column]
		if !ok {
			return nil, fmt.Errorf("missing column %q for endpoint match", mo.Column)
		}
		values[mo.Property] = value
	}
	return values, nil
}

// Partition splits rows into active and deleted sets using the mapping's
// soft-delete flag. Partitioning requires both a flag column and a flag
// value; with either missing, every row is active.
func Partition(rows []source.Row, delta *config.DeltaSpec) (active, deleted []source.Row) {
	if delta == nil || delta.DeletedFlagColumn == "" || delta.DeletedFlagValue == nil {
		return rows, nil
	}
	for _, row := range rows {
		if flagEquals(row[delta.DeletedFlagColumn], delta.DeletedFlagValue) {
			deleted = append(deleted, row)
		} else {
			active = append(active, row)
		}
	}
	return active, deleted
}

// flagEquals compares a row value against the configured flag value. Numbers
// compare by value rather than representation, because row cells arrive as
// json.Number or int64 depending on the source while the config may spell
// the same number differently.
func flagEquals(a, b interface{}) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

func normalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case json.Number:
		if f, err := vv.Float64(); err == nil {
			return f
		}
		return vv.String()
	case int:
		return float64(vv)
	case int64:
		return float64(vv)
	case float64:
		return vv
	case []interface{}:
		var out = make([]interface{}, len(vv))
		for i, elem := range vv {
			out[i] = normalizeValue(elem)
		}
		return out
	case map[string]interface{}:
		var out = make(map[string]interface{}, len(vv))
		for key, elem := range vv {
			out[key] = normalizeValue(elem)
		}
		return out
	}
	return v
}
