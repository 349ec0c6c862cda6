// Package state persists per-mapping watermarks between runs.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/cypher"
	"gopkg.in/yaml.v3"
)

// Store loads and saves the watermark document: a map from mapping name to
// the highest update timestamp that mapping has synchronized.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, marks map[string]string) error
}

// GraphQuerier is the slice of the graph client the graph backend needs.
type GraphQuerier interface {
	Query(ctx context.Context, statement string) error
	QueryScalar(ctx context.Context, statement string) (value interface{}, ok bool, err error)
}

// NewStore selects a backend from configuration. A nil configuration or the
// none backend yields a store that remembers nothing, which makes every run
// a full fetch.
func NewStore(cfg *config.StateConfig, graph GraphQuerier) (Store, error) {
	if cfg == nil {
		return nopStore{}, nil
	}
	switch cfg.Backend {
	case "", config.StateBackendNone:
		return nopStore{}, nil
	case config.StateBackendFile:
		return &fileStore{path: cfg.FilePath}, nil
	case config.StateBackendGraph, config.StateBackendFalkorDB:
		return &graphStore{graph: graph}, nil
	}
	return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
}

type nopStore struct{}

func (nopStore) Load(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
func (nopStore) Save(context.Context, map[string]string) error { return nil }

// fileStore keeps watermarks in a local JSON or YAML document, chosen by the
// file extension.
type fileStore struct {
	path string
}

func (s *fileStore) Load(context.Context) (map[string]string, error) {
	var raw, err = os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var marks = make(map[string]string)
	if isYAMLPath(s.path) {
		err = yaml.Unmarshal(raw, &marks)
	} else {
		err = json.Unmarshal(raw, &marks)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	return marks, nil
}

func (s *fileStore) Save(_ context.Context, marks map[string]string) error {
	var raw []byte
	var err error
	if isYAMLPath(s.path) {
		raw, err = yaml.Marshal(marks)
	} else {
		raw, err = json.MarshalIndent(marks, "", "  ")
		raw = append(raw, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	// Write-then-rename, so an interrupted save never truncates the document.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing state file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// graphStore keeps watermarks as a JSON property on a singleton node in the
// target graph, so sync state travels with the data it describes.
type graphStore struct {
	graph GraphQuerier
}

const (
	stateNodeLabel = "SyncState"
	stateNodeID    = "snowflake-to-falkordb"
)

func (s *graphStore) Load(ctx context.Context) (map[string]string, error) {
	var stmt = fmt.Sprintf("MATCH (s:%s { id: %s }) RETURN s.watermarks",
		stateNodeLabel, cypher.Literal(stateNodeID))

	var value, ok, err = s.graph.QueryScalar(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("loading watermarks from graph: %w", err)
	}
	var marks = make(map[string]string)
	if !ok || value == nil {
		return marks, nil
	}
	text, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("graph watermark state has unexpected type %T", value)
	}
	if err = json.Unmarshal([]byte(text), &marks); err != nil {
		return nil, fmt.Errorf("parsing graph watermark state: %w", err)
	}
	return marks, nil
}

func (s *graphStore) Save(ctx context.Context, marks map[string]string) error {
	payload, err := json.Marshal(marks)
	if err != nil {
		return fmt.Errorf("encoding watermarks: %w", err)
	}
	var stmt = fmt.Sprintf("MERGE (s:%s { id: %s }) SET s.watermarks = %s",
		stateNodeLabel, cypher.Literal(stateNodeID), cypher.Literal(string(payload)))

	if err = s.graph.Query(ctx, stmt); err != nil {
		return fmt.Errorf("saving watermarks to graph: %w", err)
	}
	return nil
}
