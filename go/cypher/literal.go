// Package cypher renders Go values as Cypher literals. FalkorDB statements
// are submitted as a single string with no parameter binding, so every piece
// of row data that reaches the graph must pass through this encoder.
package cypher

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Literal renders a value as an inline Cypher literal. Strings are quoted
// and escaped. Maps become objects with backtick-quoted keys ordered by key;
// slices become arrays. json.Number values are emitted verbatim, preserving
// the source's numeric text. Values outside the JSON data model render as
// their quoted string form.
func Literal(value interface{}) string {
	var b strings.Builder
	writeLiteral(&b, value)
	return b.String()
}

func writeLiteral(b *strings.Builder, value interface{}) {
	switch v := value.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case json.Number:
		b.WriteString(v.String())
	case string:
		writeString(b, v)
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case []interface{}:
		b.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			writeLiteral(b, elem)
		}
		b.WriteByte(']')
	case map[string]interface{}:
		writeObject(b, v)
	default:
		writeString(b, fmt.Sprintf("%v", v))
	}
}

// writeString escapes backslashes and single quotes, in that order, and wraps
// the result in single quotes.
func writeString(b *strings.Builder, s string) {
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('\'')
}

// writeObject renders a map with deterministic key order, so that a given
// batch always produces the same statement text.
func writeObject(b *strings.Builder, m map[string]interface{}) {
	if len(m) == 0 {
		b.WriteString("{}")
		return
	}
	var keys = make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		writeKey(b, key)
		b.WriteString(": ")
		writeLiteral(b, m[key])
	}
	b.WriteByte('}')
}

// writeKey quotes an object key with backticks, doubling any backtick that
// appears within the key itself.
func writeKey(b *strings.Builder, key string) {
	b.WriteByte('`')
	b.WriteString(strings.ReplaceAll(key, "`", "``"))
	b.WriteByte('`')
}
