package falkor

import (
	"fmt"
	"strings"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/cypher"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/mapping"
)

func labelClause(labels []string) string {
	return strings.Join(labels, ":")
}

func nodeUpsertStatement(m *config.NodeMapping, batch []mapping.Node) string {
	var rows = make([]interface{}, len(batch))
	for i, n := range batch {
		rows[i] = map[string]interface{}{"key": n.Key, "props": n.Props}
	}
	return fmt.Sprintf("UNWIND %s AS row MERGE (n:%s { %s: row.key }) SET n += row.props",
		cypher.Literal(rows), labelClause(m.Labels), m.Key.Property)
}

func nodeDeleteStatement(m *config.NodeMapping, batch []mapping.Node) string {
	var rows = make([]interface{}, len(batch))
	for i, n := range batch {
		rows[i] = map[string]interface{}{"key": n.Key}
	}
	return fmt.Sprintf("UNWIND %s AS row MATCH (n:%s { %s: row.key }) DETACH DELETE n",
		cypher.Literal(rows), labelClause(m.Labels), m.Key.Property)
}

// edgeRows renders a batch of edge records as the UNWIND array. Upserts carry
// the property map; deletes only need the identifying fields.
func edgeRows(batch []mapping.Edge, withProps bool) string {
	var rows = make([]interface{}, len(batch))
	for i, e := range batch {
		var row = map[string]interface{}{"from": e.From, "to": e.To}
		if e.Key != nil {
			row["edgeKey"] = e.Key
		}
		if withProps {
			row["props"] = e.Props
		}
		rows[i] = row
	}
	return cypher.Literal(rows)
}

// endpointMatch renders the MATCH clause locating one endpoint. Every
// match_on pair becomes a conjunctive predicate against the UNWIND row.
func endpointMatch(alias, side string, labels []string, matchOn []config.MatchOn) string {
	var preds = make([]string, len(matchOn))
	for i, mo := range matchOn {
		preds[i] = fmt.Sprintf("%s: row.%s.%s", mo.Property, side, mo.Property)
	}
	return fmt.Sprintf("MATCH (%s:%s { %s })", alias, labelClause(labels), strings.Join(preds, ", "))
}

// relationPattern renders the relationship clause between the matched
// endpoints, honoring the mapping's direction and optional identity key.
func relationPattern(m *config.EdgeMapping, verb string) string {
	var key string
	if m.Key != nil {
		key = fmt.Sprintf(" { %s: row.edgeKey }", m.Key.Property)
	}
	if m.Direction == config.DirectionIn {
		return fmt.Sprintf("%s (src)<-[r:%s%s]-(tgt)", verb, m.Relationship, key)
	}
	return fmt.Sprintf("%s (src)-[r:%s%s]->(tgt)", verb, m.Relationship, key)
}

func edgeUpsertStatement(m *config.EdgeMapping, fromLabels, toLabels []string, batch []mapping.Edge) string {
	return fmt.Sprintf("UNWIND %s AS row %s %s %s SET r += row.props",
		edgeRows(batch, true),
		endpointMatch("src", "from", fromLabels, m.From.MatchOn),
		endpointMatch("tgt", "to", toLabels, m.To.MatchOn),
		relationPattern(m, "MERGE"))
}

func edgeDeleteStatement(m *config.EdgeMapping, fromLabels, toLabels []string, batch []mapping.Edge) string {
	return fmt.Sprintf("UNWIND %s AS row %s %s %s DELETE r",
		edgeRows(batch, false),
		endpointMatch("src", "from", fromLabels, m.From.MatchOn),
		endpointMatch("tgt", "to", toLabels, m.To.MatchOn),
		relationPattern(m, "MATCH"))
}

func indexStatement(labels []string, property string) string {
	return fmt.Sprintf("CREATE INDEX ON :%s(%s)", labelClause(labels), property)
}

func purgeNodesStatement(m *config.NodeMapping) string {
	return fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", labelClause(m.Labels))
}

func purgeEdgesStatement(m *config.EdgeMapping, fromLabels, toLabels []string) string {
	if m.Direction == config.DirectionIn {
		return fmt.Sprintf("MATCH (src:%s)<-[r:%s]-(tgt:%s) DELETE r",
			labelClause(fromLabels), m.Relationship, labelClause(toLabels))
	}
	return fmt.Sprintf("MATCH (src:%s)-[r:%s]->(tgt:%s) DELETE r",
		labelClause(fromLabels), m.Relationship, labelClause(toLabels))
}
