package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads, parses, resolves and validates a configuration document.
// Files ending in .yaml or .yml are parsed as YAML; anything else as JSON.
// Unknown fields are rejected so that typos fail loudly instead of silently
// skipping a mapping attribute.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Parse YAML and re-encode as JSON, so the strict JSON decoder is the
		// single place where the schema is enforced.
		var parsed interface{}
		if err = yaml.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
		if raw, err = json.Marshal(parsed); err != nil {
			return nil, fmt.Errorf("re-encoding YAML config %s: %w", path, err)
		}
	}

	var cfg = new(Config)
	if err = unmarshalStrict(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err = cfg.resolveEnv(); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// unmarshalStrict decodes JSON while rejecting unknown fields and preserving
// numbers as json.Number, so row values read from file sources and literal
// values from the config compare without float coercion.
func unmarshalStrict(raw []byte, into interface{}) error {
	var dec = json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	return dec.Decode(into)
}

// UnmarshalJSON decodes the tagged mapping union.
func (m *Mapping) UnmarshalJSON(raw []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}

	switch probe.Type {
	case "node":
		var node = new(NodeMapping)
		if err := unmarshalStrict(raw, node); err != nil {
			return fmt.Errorf("node mapping: %w", err)
		}
		if node.Mode == "" {
			node.Mode = ModeFull
		}
		m.Node = node
	case "edge":
		var edge = new(EdgeMapping)
		if err := unmarshalStrict(raw, edge); err != nil {
			return fmt.Errorf("edge mapping: %w", err)
		}
		if edge.Mode == "" {
			edge.Mode = ModeFull
		}
		if edge.Direction == "" {
			edge.Direction = DirectionOut
		}
		m.Edge = edge
	case "":
		return fmt.Errorf("mapping is missing 'type'")
	default:
		return fmt.Errorf("unknown mapping type %q (expected \"node\" or \"edge\")", probe.Type)
	}
	return nil
}

// MarshalJSON re-encodes the active mapping variant.
func (m Mapping) MarshalJSON() ([]byte, error) {
	switch {
	case m.Node != nil:
		return json.Marshal(m.Node)
	case m.Edge != nil:
		return json.Marshal(m.Edge)
	}
	return nil, fmt.Errorf("mapping is neither a node nor an edge")
}

// resolveEnv replaces "$NAME" values of connection-level string fields with
// the named environment variable. Resolution is restricted to the snowflake,
// falkordb and state sections: mapping bodies are declarative data and a
// literal "$" there must survive untouched.
func (c *Config) resolveEnv() error {
	var fields []envField
	if c.Snowflake != nil {
		fields = append(fields,
			envField{"snowflake.account", &c.Snowflake.Account},
			envField{"snowflake.user", &c.Snowflake.User},
			envField{"snowflake.password", &c.Snowflake.Password},
			envField{"snowflake.private_key_path", &c.Snowflake.PrivateKeyPath},
			envField{"snowflake.warehouse", &c.Snowflake.Warehouse},
			envField{"snowflake.database", &c.Snowflake.Database},
			envField{"snowflake.schema", &c.Snowflake.Schema},
			envField{"snowflake.role", &c.Snowflake.Role},
			envField{"snowflake.region", &c.Snowflake.Region},
		)
	}
	fields = append(fields,
		envField{"falkordb.endpoint", &c.FalkorDB.Endpoint},
		envField{"falkordb.graph", &c.FalkorDB.Graph},
		envField{"falkordb.username", &c.FalkorDB.Username},
		envField{"falkordb.password", &c.FalkorDB.Password},
	)
	if c.State != nil {
		fields = append(fields, envField{"state.file_path", &c.State.FilePath})
	}

	for _, f := range fields {
		if err := f.resolve(); err != nil {
			return err
		}
	}
	return nil
}

type envField struct {
	location string
	value    *string
}

func (f envField) resolve() error {
	if !strings.HasPrefix(*f.value, "$") {
		return nil
	}
	var name = strings.TrimPrefix(*f.value, "$")
	var resolved, ok = os.LookupEnv(name)
	if !ok {
		return fmt.Errorf("%s references environment variable %s, which is not set", f.location, name)
	}
	*f.value = resolved
	return nil
}
