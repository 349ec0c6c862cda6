// Package loader orchestrates sync runs: purge, ensure indexes, then fetch,
// project and write every mapping in declaration order, advancing watermarks
// as each mapping completes.
package loader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/falkor"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/mapping"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/source"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/state"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RowSource fetches the rows of one mapping. An empty watermark means an
// unbounded fetch.
type RowSource interface {
	Fetch(ctx context.Context, m *config.Common, watermark string) ([]source.Row, error)
}

// PurgeOptions name graph data to clear before syncing.
type PurgeOptions struct {
	// Graph removes every node and relationship.
	Graph bool
	// Mappings removes the data of specific mappings by name. Unknown names
	// are logged and skipped.
	Mappings []string
}

// Loader runs sync passes over the configured mappings.
type Loader struct {
	cfg     *config.Config
	graph   falkor.Executor
	rows    RowSource
	marks   state.Store
	closers []io.Closer
}

// New assembles a Loader from explicit parts.
func New(cfg *config.Config, graph falkor.Executor, rows RowSource, marks state.Store) *Loader {
	return &Loader{cfg: cfg, graph: graph, rows: rows, marks: marks}
}

// Connect dials the configured graph, builds the state store and source
// reader, and returns a ready Loader. Close releases its connections.
func Connect(ctx context.Context, cfg *config.Config) (*Loader, error) {
	client, err := falkor.Dial(ctx, &cfg.FalkorDB)
	if err != nil {
		return nil, err
	}
	marks, err := state.NewStore(cfg.State, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	var reader = source.NewReader(cfg)

	var l = New(cfg, client, reader, marks)
	l.closers = append(l.closers, reader, client)
	return l, nil
}

// Close releases connections opened by Connect.
func (l *Loader) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Run executes one complete sync pass.
func (l *Loader) Run(ctx context.Context, purge PurgeOptions) error {
	runsTotal.Inc()
	var runLog = log.WithField("run", uuid.NewString())

	if err := l.run(ctx, purge, runLog); err != nil {
		failedRunsTotal.Inc()
		return err
	}
	return nil
}

// RunDaemon runs immediately and then once per interval until the context
// ends. Purge options apply to the first run only. Failed runs are logged
// and counted, and the daemon keeps going; if a run overruns the interval,
// missed ticks coalesce into a single following run.
func (l *Loader) RunDaemon(ctx context.Context, purge PurgeOptions, interval time.Duration) error {
	var ticker = time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := l.Run(ctx, purge); err != nil {
			log.WithField("err", err).Error("sync run failed")
		}
		purge = PurgeOptions{}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loader) run(ctx context.Context, purge PurgeOptions, runLog *log.Entry) error {
	marks, err := l.marks.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading watermarks: %w", err)
	}

	var nodesByName = make(map[string]*config.NodeMapping)
	for i := range l.cfg.Mappings {
		if node := l.cfg.Mappings[i].Node; node != nil {
			nodesByName[node.Name] = node
		}
	}

	if err = l.applyPurges(ctx, purge, nodesByName, runLog); err != nil {
		return err
	}
	falkor.EnsureIndexes(ctx, l.graph, l.cfg.Mappings)

	// Mappings run sequentially in declaration order, so edge mappings can
	// rely on nodes their declaration-order predecessors just merged.
	for i := range l.cfg.Mappings {
		var m = &l.cfg.Mappings[i]
		if err = l.runMapping(ctx, m, nodesByName, marks, runLog); err != nil {
			mappingFailedRunsTotal.WithLabelValues(m.Name()).Inc()
			return fmt.Errorf("mapping %q: %w", m.Name(), err)
		}
	}
	return nil
}

// applyPurges clears graph data ahead of the sync. A full-graph purge
// subsumes any per-mapping purge requests.
func (l *Loader) applyPurges(ctx context.Context, purge PurgeOptions, nodesByName map[string]*config.NodeMapping, runLog *log.Entry) error {
	if purge.Graph {
		runLog.Info("purging graph")
		if err := falkor.PurgeGraph(ctx, l.graph); err != nil {
			return fmt.Errorf("purging graph: %w", err)
		}
		return nil
	}
	for _, name := range purge.Mappings {
		var m = l.mappingByName(name)
		switch {
		case m == nil:
			runLog.WithField("mapping", name).Warn("ignoring purge of unknown mapping")
		case m.Node != nil:
			runLog.WithField("mapping", name).Info("purging nodes")
			if err := falkor.PurgeNodes(ctx, l.graph, m.Node); err != nil {
				return fmt.Errorf("purging mapping %q: %w", name, err)
			}
		case m.Edge != nil:
			from, to, err := endpointLabels(m.Edge, nodesByName)
			if err != nil {
				return err
			}
			runLog.WithField("mapping", name).Info("purging edges")
			if err := falkor.PurgeEdges(ctx, l.graph, m.Edge, from, to); err != nil {
				return fmt.Errorf("purging mapping %q: %w", name, err)
			}
		}
	}
	return nil
}

func (l *Loader) mappingByName(name string) *config.Mapping {
	for i := range l.cfg.Mappings {
		if l.cfg.Mappings[i].Name() == name {
			return &l.cfg.Mappings[i]
		}
	}
	return nil
}

func (l *Loader) runMapping(ctx context.Context, m *config.Mapping, nodesByName map[string]*config.NodeMapping, marks map[string]string, runLog *log.Entry) error {
	var common = m.Common()
	mappingRunsTotal.WithLabelValues(common.Name).Inc()
	var mapLog = runLog.WithField("mapping", common.Name)

	// Full mode always fetches everything; only incremental mode bounds the
	// fetch by the stored watermark.
	var watermark string
	if common.Mode == config.ModeIncremental {
		watermark = marks[common.Name]
	}

	rows, err := l.rows.Fetch(ctx, common, watermark)
	if err != nil {
		return fmt.Errorf("fetching rows: %w", err)
	}
	rowsFetchedTotal.Add(float64(len(rows)))
	mappingRowsFetchedTotal.WithLabelValues(common.Name).Add(float64(len(rows)))
	mapLog.WithFields(log.Fields{"rows": len(rows), "watermark": watermark}).Info("fetched rows")

	var active, deleted = mapping.Partition(rows, common.Delta)
	var batchSize = l.cfg.FalkorDB.BatchSize()
	var retries = l.cfg.FalkorDB.Retries()

	switch {
	case m.Node != nil:
		upserts, err := mapping.Nodes(active, m.Node)
		if err != nil {
			return fmt.Errorf("projecting rows: %w", err)
		}
		rowsWrittenTotal.Add(float64(len(upserts)))
		mappingRowsWrittenTotal.WithLabelValues(common.Name).Add(float64(len(upserts)))
		if err = falkor.WriteNodes(ctx, l.graph, m.Node, upserts, batchSize, retries); err != nil {
			return fmt.Errorf("writing nodes: %w", err)
		}

		removals, err := mapping.Nodes(deleted, m.Node)
		if err != nil {
			return fmt.Errorf("projecting deleted rows: %w", err)
		}
		rowsDeletedTotal.Add(float64(len(removals)))
		mappingRowsDeletedTotal.WithLabelValues(common.Name).Add(float64(len(removals)))
		if err = falkor.DeleteNodes(ctx, l.graph, m.Node, removals, batchSize, retries); err != nil {
			return fmt.Errorf("deleting nodes: %w", err)
		}
		mapLog.WithFields(log.Fields{"written": len(upserts), "deleted": len(removals)}).Info("synchronized nodes")

	case m.Edge != nil:
		from, to, err := endpointLabels(m.Edge, nodesByName)
		if err != nil {
			return err
		}
		upserts, err := mapping.Edges(active, m.Edge)
		if err != nil {
			return fmt.Errorf("projecting rows: %w", err)
		}
		rowsWrittenTotal.Add(float64(len(upserts)))
		mappingRowsWrittenTotal.WithLabelValues(common.Name).Add(float64(len(upserts)))
		if err = falkor.WriteEdges(ctx, l.graph, m.Edge, from, to, upserts, batchSize, retries); err != nil {
			return fmt.Errorf("writing edges: %w", err)
		}

		removals, err := mapping.Edges(deleted, m.Edge)
		if err != nil {
			return fmt.Errorf("projecting deleted rows: %w", err)
		}
		rowsDeletedTotal.Add(float64(len(removals)))
		mappingRowsDeletedTotal.WithLabelValues(common.Name).Add(float64(len(removals)))
		if err = falkor.DeleteEdges(ctx, l.graph, m.Edge, from, to, removals, batchSize, retries); err != nil {
			return fmt.Errorf("deleting edges: %w", err)
		}
		mapLog.WithFields(log.Fields{"written": len(upserts), "deleted": len(removals)}).Info("synchronized edges")
	}

	// The watermark advances over every fetched row regardless of mode, and
	// persists immediately so a later mapping's failure cannot roll it back.
	if common.Delta != nil {
		if next, changed := advanceWatermark(marks[common.Name], rows, common.Delta.UpdatedAtColumn); changed {
			marks[common.Name] = next
			if err = l.marks.Save(ctx, marks); err != nil {
				return fmt.Errorf("saving watermark: %w", err)
			}
			mapLog.WithField("watermark", next).Info("advanced watermark")
		}
	}
	return nil
}

func endpointLabels(m *config.EdgeMapping, nodesByName map[string]*config.NodeMapping) (from, to []string, err error) {
	if from, err = resolveEndpoint(&m.From, nodesByName); err != nil {
		return nil, nil, fmt.Errorf("edge %q from: %w", m.Name, err)
	}
	if to, err = resolveEndpoint(&m.To, nodesByName); err != nil {
		return nil, nil, fmt.Errorf("edge %q to: %w", m.Name, err)
	}
	return from, to, nil
}

func resolveEndpoint(e *config.Endpoint, nodesByName map[string]*config.NodeMapping) ([]string, error) {
	if len(e.LabelOverride) != 0 {
		return e.LabelOverride, nil
	}
	node, ok := nodesByName[e.NodeMapping]
	if !ok {
		return nil, fmt.Errorf("references unknown node mapping %q", e.NodeMapping)
	}
	return node.Labels, nil
}
