package mapping

import (
	"encoding/json"
	"testing"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/source"
	"github.com/stretchr/testify/require"
)

func TestNodesProjection(t *testing.T) {
	var m = &config.NodeMapping{
		Common: config.Common{Name: "customers"},
		Labels: []string{"Customer"},
		Key:    config.KeySpec{Column: "ID", Property: "id"},
		Properties: map[string]config.PropertySpec{
			"name":  {Column: "NAME"},
			"email": {Column: "EMAIL"},
			// Collides with the key property and must lose.
			"id": {Column: "SHADOW_ID"},
		},
	}
	var rows = []source.Row{
		{"ID": json.Number("1"), "NAME": "Ada", "EMAIL": "ada@example.com", "SHADOW_ID": json.Number("999")},
		{"ID": json.Number("2"), "NAME": nil, "EMAIL": "noname@example.com", "SHADOW_ID": json.Number("998")},
	}

	var nodes, err = Nodes(rows, m)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	require.Equal(t, json.Number("1"), nodes[0].Key)
	require.Equal(t, map[string]interface{}{
		"id":    json.Number("1"),
		"name":  "Ada",
		"email": "ada@example.com",
	}, nodes[0].Props)

	// A present-but-null cell carries through as a null property.
	require.Equal(t, map[string]interface{}{
		"id":    json.Number("2"),
		"name":  nil,
		"email": "noname@example.com",
	}, nodes[1].Props)
}

func TestNodesMissingColumns(t *testing.T) {
	var m = &config.NodeMapping{
		Common:     config.Common{Name: "customers"},
		Labels:     []string{"Customer"},
		Key:        config.KeySpec{Column: "ID", Property: "id"},
		Properties: map[string]config.PropertySpec{"name": {Column: "NAME"}},
	}

	var _, err = Nodes([]source.Row{
		{"ID": json.Number("1"), "NAME": "Ada"},
		{"NAME": "keyless"},
	}, m)
	require.EqualError(t, err, `row 1 is missing key column "ID"`)

	_, err = Nodes([]source.Row{{"ID": json.Number("1")}}, m)
	require.EqualError(t, err, `row 0 is missing column "NAME" for property "name"`)

	// A null key is present; the graph server is the one to reject it.
	nodes, err := Nodes([]source.Row{{"ID": nil, "NAME": "null key"}}, m)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Nil(t, nodes[0].Key)
}

func TestEdgesProjection(t *testing.T) {
	var m = &config.EdgeMapping{
		Common:       config.Common{Name: "placed"},
		Relationship: "PLACED",
		From: config.Endpoint{
			NodeMapping: "customers",
			MatchOn: []config.MatchOn{
				{Column: "CUSTOMER_ID", Property: "id"},
				{Column: "REGION", Property: "region"},
			},
		},
		To: config.Endpoint{
			NodeMapping: "orders",
			MatchOn:     []config.MatchOn{{Column: "ORDER_ID", Property: "id"}},
		},
		Key:        &config.KeySpec{Column: "LINE_ID", Property: "line"},
		Properties: map[string]config.PropertySpec{"qty": {Column: "QTY"}},
	}
	var rows = []source.Row{
		{"CUSTOMER_ID": json.Number("1"), "REGION": "eu", "ORDER_ID": json.Number("10"), "LINE_ID": json.Number("100"), "QTY": json.Number("3")},
	}

	var edges, err = Edges(rows, m)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	require.Equal(t, map[string]interface{}{"id": json.Number("1"), "region": "eu"}, edges[0].From)
	require.Equal(t, map[string]interface{}{"id": json.Number("10")}, edges[0].To)
	require.Equal(t, json.Number("100"), edges[0].Key)
	require.Equal(t, map[string]interface{}{"qty": json.Number("3")}, edges[0].Props)
}

func TestEdgesMissingColumns(t *testing.T) {
	var m = &config.EdgeMapping{
		Common:       config.Common{Name: "placed"},
		Relationship: "PLACED",
		From: config.Endpoint{
			NodeMapping: "customers",
			MatchOn: []config.MatchOn{
				{Column: "CUSTOMER_ID", Property: "id"},
				{Column: "REGION", Property: "region"},
			},
		},
		To: config.Endpoint{
			NodeMapping: "orders",
			MatchOn:     []config.MatchOn{{Column: "ORDER_ID", Property: "id"}},
		},
		Key:        &config.KeySpec{Column: "LINE_ID", Property: "line"},
		Properties: map[string]config.PropertySpec{"qty": {Column: "QTY"}},
	}

	var _, err = Edges([]source.Row{
		{"CUSTOMER_ID": json.Number("2"), "ORDER_ID": json.Number("11"), "LINE_ID": json.Number("101"), "QTY": json.Number("1")},
	}, m)
	require.EqualError(t, err, `row 0: missing column "REGION" for endpoint match`)

	_, err = Edges([]source.Row{
		{"CUSTOMER_ID": json.Number("3"), "REGION": "us", "LINE_ID": json.Number("102"), "QTY": json.Number("1")},
	}, m)
	require.EqualError(t, err, `row 0: missing column "ORDER_ID" for endpoint match`)

	_, err = Edges([]source.Row{
		{"CUSTOMER_ID": json.Number("4"), "REGION": "us", "ORDER_ID": json.Number("12"), "QTY": json.Number("1")},
	}, m)
	require.EqualError(t, err, `row 0 is missing column "LINE_ID" for the edge key`)

	_, err = Edges([]source.Row{
		{"CUSTOMER_ID": json.Number("5"), "REGION": "us", "ORDER_ID": json.Number("13"), "LINE_ID": json.Number("103")},
	}, m)
	require.EqualError(t, err, `row 0 is missing column "QTY" for property "qty"`)
}

func TestEdgesWithoutKey(t *testing.T) {
	var m = &config.EdgeMapping{
		Common:       config.Common{Name: "knows"},
		Relationship: "KNOWS",
		From:         config.Endpoint{NodeMapping: "users", MatchOn: []config.MatchOn{{Column: "A", Property: "id"}}},
		To:           config.Endpoint{NodeMapping: "users", MatchOn: []config.MatchOn{{Column: "B", Property: "id"}}},
	}
	var edges, err = Edges([]source.Row{{"A": json.Number("1"), "B": json.Number("2")}}, m)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Nil(t, edges[0].Key)
	require.Empty(t, edges[0].Props)
}

func TestPartition(t *testing.T) {
	var rows = []source.Row{
		{"ID": json.Number("1"), "DELETED": false},
		{"ID": json.Number("2"), "DELETED": true},
		{"ID": json.Number("3")},
	}

	var active, deleted = Partition(rows, &config.DeltaSpec{
		UpdatedAtColumn:   "TS",
		DeletedFlagColumn: "DELETED",
		DeletedFlagValue:  true,
	})
	require.Len(t, active, 2)
	require.Len(t, deleted, 1)
	require.Equal(t, json.Number("2"), deleted[0]["ID"])

	// Without a flag value the column alone does not partition.
	active, deleted = Partition(rows, &config.DeltaSpec{
		UpdatedAtColumn:   "TS",
		DeletedFlagColumn: "DELETED",
	})
	require.Len(t, active, 3)
	require.Empty(t, deleted)

	// And without a delta at all everything is active.
	active, deleted = Partition(rows, nil)
	require.Len(t, active, 3)
	require.Empty(t, deleted)
}

func TestPartitionComparesNumbersByValue(t *testing.T) {
	var rows = []source.Row{
		{"ID": json.Number("1"), "STATE": json.Number("1")},
		{"ID": json.Number("2"), "STATE": int64(1)},
		{"ID": json.Number("3"), "STATE": "1"},
		{"ID": json.Number("4"), "STATE": json.Number("0")},
	}
	var delta = &config.DeltaSpec{
		UpdatedAtColumn:   "TS",
		DeletedFlagColumn: "STATE",
		DeletedFlagValue:  json.Number("1"),
	}

	var active, deleted = Partition(rows, delta)
	require.Len(t, deleted, 2)
	require.Len(t, active, 2)

	// The string "1" is not the number 1.
	require.Equal(t, json.Number("3"), active[0]["ID"])
	require.Equal(t, json.Number("4"), active[1]["ID"])
}
