// Package config holds the typed, validated shape of the loader's declarative
// configuration: the Snowflake and FalkorDB endpoints, the optional watermark
// state backend, and the ordered list of node and edge mappings.
package config

import (
	"fmt"
)

// Mapping modes. Full mode re-fetches every row on each run; incremental mode
// bounds the fetch by the mapping's stored watermark.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Edge directions. An "out" edge is drawn src→tgt, an "in" edge src←tgt.
const (
	DirectionOut = "out"
	DirectionIn  = "in"
)

// Watermark state backends.
const (
	StateBackendNone  = "none"
	StateBackendFile  = "file"
	StateBackendGraph = "graph"
	// StateBackendFalkorDB is accepted as an alias of StateBackendGraph.
	StateBackendFalkorDB = "falkordb"
)

// Config is the top-level configuration object of a sync process.
type Config struct {
	Snowflake *SnowflakeConfig `json:"snowflake,omitempty"`
	FalkorDB  FalkorConfig     `json:"falkordb"`
	State     *StateConfig     `json:"state,omitempty"`
	Mappings  []Mapping        `json:"mappings"`
}

// SnowflakeConfig locates and authenticates the source warehouse.
// Password and key-pair auth are both supported: if PrivateKeyPath is set the
// connection uses JWT key-pair auth and Password, when present, is the
// passphrase of the encrypted private key.
type SnowflakeConfig struct {
	Account        string `json:"account"`
	User           string `json:"user"`
	Password       string `json:"password,omitempty"`
	PrivateKeyPath string `json:"private_key_path,omitempty"`
	Warehouse      string `json:"warehouse"`
	Database       string `json:"database"`
	Schema         string `json:"schema"`
	Role           string `json:"role,omitempty"`
	Region         string `json:"region,omitempty"`
	// FetchBatchSize enables paged incremental fetches when non-zero.
	FetchBatchSize int `json:"fetch_batch_size,omitempty"`
	// QueryTimeoutMS bounds each warehouse query.
	QueryTimeoutMS int `json:"query_timeout_ms,omitempty"`
}

// Validate the warehouse configuration.
func (c *SnowflakeConfig) Validate() error {
	var requiredProperties = [][]string{
		{"account", c.Account},
		{"user", c.User},
		{"warehouse", c.Warehouse},
		{"database", c.Database},
		{"schema", c.Schema},
	}
	for _, req := range requiredProperties {
		if req[1] == "" {
			return fmt.Errorf("missing '%s'", req[0])
		}
	}
	if c.Password == "" && c.PrivateKeyPath == "" {
		return fmt.Errorf("either 'password' or 'private_key_path' must be set for authentication")
	}
	if c.FetchBatchSize < 0 {
		return fmt.Errorf("'fetch_batch_size' cannot be negative")
	}
	if c.QueryTimeoutMS < 0 {
		return fmt.Errorf("'query_timeout_ms' cannot be negative")
	}
	return nil
}

// FalkorConfig locates the target graph.
type FalkorConfig struct {
	// Endpoint of the graph server, e.g. "falkor://127.0.0.1:6379".
	Endpoint string `json:"endpoint"`
	// Graph is the name of the target graph.
	Graph    string `json:"graph"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// MaxUnwindBatchSize caps the rows inlined into one UNWIND statement.
	// Defaults to 1000 and clamps to a minimum of 1.
	MaxUnwindBatchSize *int `json:"max_unwind_batch_size,omitempty"`
	// MaxRetries is the retry budget of each batch. Defaults to 3; zero
	// disables retries.
	MaxRetries *int `json:"max_retries,omitempty"`
	// QueryTimeoutMS bounds each graph query at the connection level.
	QueryTimeoutMS int `json:"query_timeout_ms,omitempty"`
}

// Validate the graph configuration.
func (c *FalkorConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("missing 'endpoint'")
	}
	if c.Graph == "" {
		return fmt.Errorf("missing 'graph'")
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("'max_retries' cannot be negative")
	}
	if c.QueryTimeoutMS < 0 {
		return fmt.Errorf("'query_timeout_ms' cannot be negative")
	}
	return nil
}

// BatchSize returns the configured UNWIND batch size, defaulted and clamped.
func (c *FalkorConfig) BatchSize() int {
	if c.MaxUnwindBatchSize == nil {
		return 1000
	}
	if *c.MaxUnwindBatchSize < 1 {
		return 1
	}
	return *c.MaxUnwindBatchSize
}

// Retries returns the configured per-batch retry budget, defaulted.
func (c *FalkorConfig) Retries() int {
	if c.MaxRetries == nil {
		return 3
	}
	return *c.MaxRetries
}

// StateConfig selects where per-mapping watermarks persist.
type StateConfig struct {
	Backend string `json:"backend"`
	// FilePath is the watermark document location for the file backend.
	FilePath string `json:"file_path,omitempty"`
}

// Validate the state configuration.
func (c *StateConfig) Validate() error {
	switch c.Backend {
	case StateBackendNone, StateBackendGraph, StateBackendFalkorDB:
		return nil
	case StateBackendFile:
		if c.FilePath == "" {
			return fmt.Errorf("file backend requires 'file_path'")
		}
		return nil
	case "":
		return fmt.Errorf("missing 'backend'")
	default:
		return fmt.Errorf("unknown state backend %q", c.Backend)
	}
}

// SourceSpec names where a mapping's rows come from. Exactly one of File,
// Table, Stream or Select must be set; when several are present the
// precedence is Select > Stream > Table > File.
type SourceSpec struct {
	// File is a path to a JSON array of row objects, for development and tests.
	File string `json:"file,omitempty"`
	// Table generates "SELECT * FROM <table>".
	Table string `json:"table,omitempty"`
	// Stream generates "SELECT * FROM <stream>"; the stream is stateful on the
	// warehouse side, so stored watermarks are never injected.
	Stream string `json:"stream,omitempty"`
	// Select is a full statement used verbatim, with no watermark injection.
	Select string `json:"select,omitempty"`
	// Where is appended to generated statements.
	Where string `json:"where,omitempty"`
}

// Validate returns an error if the SourceSpec is malformed.
func (s *SourceSpec) Validate() error {
	if s.File == "" && s.Table == "" && s.Stream == "" && s.Select == "" {
		return fmt.Errorf("missing source: one of 'file', 'table', 'stream' or 'select' is required")
	}
	return nil
}

// DeltaSpec describes how incremental change shows up in source rows.
type DeltaSpec struct {
	// UpdatedAtColumn holds each row's last-modified timestamp.
	UpdatedAtColumn string `json:"updated_at_column"`
	// DeletedFlagColumn, together with DeletedFlagValue, marks tombstoned
	// rows. Rows whose flag column equals the configured value are deleted
	// from the graph instead of upserted. A column without a value disables
	// partitioning.
	DeletedFlagColumn string      `json:"deleted_flag_column,omitempty"`
	DeletedFlagValue  interface{} `json:"deleted_flag_value,omitempty"`
	// InitialFullLoad is accepted for compatibility; a first incremental run
	// with no stored watermark is already a full fetch.
	InitialFullLoad bool `json:"initial_full_load,omitempty"`
}

// Validate returns an error if the DeltaSpec is malformed.
func (d *DeltaSpec) Validate() error {
	if d.UpdatedAtColumn == "" {
		return fmt.Errorf("missing 'updated_at_column'")
	}
	return nil
}

// Common holds the fields shared by node and edge mappings.
type Common struct {
	Type   string     `json:"type"`
	Name   string     `json:"name"`
	Source SourceSpec `json:"source"`
	Mode   string     `json:"mode,omitempty"`
	Delta  *DeltaSpec `json:"delta,omitempty"`
}

func (c *Common) validateCommon() error {
	if c.Name == "" {
		return fmt.Errorf("missing 'name'")
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	switch c.Mode {
	case "", ModeFull, ModeIncremental:
	default:
		return fmt.Errorf("unknown mode %q (expected %q or %q)", c.Mode, ModeFull, ModeIncremental)
	}
	if c.Delta != nil {
		if err := c.Delta.Validate(); err != nil {
			return fmt.Errorf("delta: %w", err)
		}
	}
	return nil
}

// KeySpec pairs a source column with the graph property that stores it.
type KeySpec struct {
	Column   string `json:"column"`
	Property string `json:"property"`
}

// Validate returns an error if the KeySpec is malformed.
func (k *KeySpec) Validate() error {
	if k.Column == "" {
		return fmt.Errorf("missing 'column'")
	}
	if k.Property == "" {
		return fmt.Errorf("missing 'property'")
	}
	return nil
}

// PropertySpec names the source column feeding a graph property.
type PropertySpec struct {
	Column string `json:"column"`
}

// NodeMapping turns source rows into labeled graph nodes. The key property
// uniquely identifies a node within its label set and is always written,
// overriding any colliding entry in Properties.
type NodeMapping struct {
	Common
	Labels     []string                `json:"labels"`
	Key        KeySpec                 `json:"key"`
	Properties map[string]PropertySpec `json:"properties,omitempty"`
}

// Validate the node mapping.
func (m *NodeMapping) Validate() error {
	if err := m.validateCommon(); err != nil {
		return err
	}
	if len(m.Labels) == 0 {
		return fmt.Errorf("missing 'labels'")
	}
	for i, label := range m.Labels {
		if label == "" {
			return fmt.Errorf("labels[%d] is empty", i)
		}
	}
	if err := m.Key.Validate(); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	for name, spec := range m.Properties {
		if spec.Column == "" {
			return fmt.Errorf("property %q is missing 'column'", name)
		}
	}
	return nil
}

// MatchOn is one equality predicate used to locate an edge endpoint:
// the row's Column value must equal the endpoint node's Property.
type MatchOn struct {
	Column   string `json:"column"`
	Property string `json:"property"`
}

// Endpoint references a node mapping by name and says how to match its nodes.
// All MatchOn entries become conjunctive equality predicates.
type Endpoint struct {
	NodeMapping string    `json:"node_mapping"`
	MatchOn     []MatchOn `json:"match_on"`
	// LabelOverride replaces the referenced node mapping's labels when
	// matching, for edges that target a label subset.
	LabelOverride []string `json:"label_override,omitempty"`
}

// Validate returns an error if the Endpoint is malformed.
func (e *Endpoint) Validate() error {
	if e.NodeMapping == "" {
		return fmt.Errorf("missing 'node_mapping'")
	}
	if len(e.MatchOn) == 0 {
		return fmt.Errorf("'match_on' must have at least one entry")
	}
	for i, mo := range e.MatchOn {
		if mo.Column == "" {
			return fmt.Errorf("match_on[%d] is missing 'column'", i)
		}
		if mo.Property == "" {
			return fmt.Errorf("match_on[%d] is missing 'property'", i)
		}
	}
	if e.LabelOverride != nil && len(e.LabelOverride) == 0 {
		return fmt.Errorf("'label_override' cannot be empty")
	}
	return nil
}

// EdgeMapping turns source rows into relationships between nodes produced by
// two referenced node mappings.
type EdgeMapping struct {
	Common
	Relationship string                  `json:"relationship"`
	Direction    string                  `json:"direction,omitempty"`
	From         Endpoint                `json:"from"`
	To           Endpoint                `json:"to"`
	Key          *KeySpec                `json:"key,omitempty"`
	Properties   map[string]PropertySpec `json:"properties,omitempty"`
}

// Validate the edge mapping.
func (m *EdgeMapping) Validate() error {
	if err := m.validateCommon(); err != nil {
		return err
	}
	if m.Relationship == "" {
		return fmt.Errorf("missing 'relationship'")
	}
	switch m.Direction {
	case "", DirectionOut, DirectionIn:
	default:
		return fmt.Errorf("unknown direction %q (expected %q or %q)", m.Direction, DirectionOut, DirectionIn)
	}
	if err := m.From.Validate(); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := m.To.Validate(); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if m.Key != nil {
		if err := m.Key.Validate(); err != nil {
			return fmt.Errorf("key: %w", err)
		}
	}
	for name, spec := range m.Properties {
		if spec.Column == "" {
			return fmt.Errorf("property %q is missing 'column'", name)
		}
	}
	return nil
}

// Mapping is the closed union of node and edge mappings, discriminated by the
// "type" field. Exactly one of Node or Edge is set after a successful parse.
type Mapping struct {
	Node *NodeMapping
	Edge *EdgeMapping
}

// Common returns the fields shared by both mapping variants.
func (m *Mapping) Common() *Common {
	switch {
	case m.Node != nil:
		return &m.Node.Common
	case m.Edge != nil:
		return &m.Edge.Common
	}
	return nil
}

// Name returns the mapping's logical name.
func (m *Mapping) Name() string {
	if c := m.Common(); c != nil {
		return c.Name
	}
	return ""
}

// Validate the mapping variant.
func (m *Mapping) Validate() error {
	switch {
	case m.Node != nil && m.Edge != nil:
		return fmt.Errorf("mapping cannot be both a node and an edge")
	case m.Node != nil:
		return m.Node.Validate()
	case m.Edge != nil:
		return m.Edge.Validate()
	}
	return fmt.Errorf("mapping is neither a node nor an edge")
}

// Validate the whole configuration, including cross-mapping references.
func (c *Config) Validate() error {
	if err := c.FalkorDB.Validate(); err != nil {
		return fmt.Errorf("falkordb: %w", err)
	}
	if c.Snowflake != nil {
		if err := c.Snowflake.Validate(); err != nil {
			return fmt.Errorf("snowflake: %w", err)
		}
	}
	if c.State != nil {
		if err := c.State.Validate(); err != nil {
			return fmt.Errorf("state: %w", err)
		}
	}

	var nodesByName = make(map[string]struct{})
	var seenNames = make(map[string]struct{})
	for i := range c.Mappings {
		var m = &c.Mappings[i]
		if err := m.Validate(); err != nil {
			return fmt.Errorf("mappings[%d] (%s): %w", i, m.Name(), err)
		}
		if _, ok := seenNames[m.Name()]; ok {
			return fmt.Errorf("mappings[%d]: duplicated mapping name %q", i, m.Name())
		}
		seenNames[m.Name()] = struct{}{}
		if m.Node != nil {
			nodesByName[m.Name()] = struct{}{}
		}
	}

	for i := range c.Mappings {
		var m = &c.Mappings[i]

		// Warehouse-backed sources need the snowflake section.
		if m.Common().Source.File == "" && c.Snowflake == nil {
			return fmt.Errorf("mapping %q uses a warehouse source but no 'snowflake' section is configured", m.Name())
		}
		if m.Edge == nil {
			continue
		}
		for _, ref := range []struct {
			side string
			name string
		}{
			{"from", m.Edge.From.NodeMapping},
			{"to", m.Edge.To.NodeMapping},
		} {
			if _, ok := nodesByName[ref.name]; !ok {
				return fmt.Errorf("edge mapping %q refers to unknown %s.node_mapping %q", m.Name(), ref.side, ref.name)
			}
		}
	}
	return nil
}
