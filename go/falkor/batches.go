package falkor

import (
	"context"
	"fmt"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/mapping"
	log "github.com/sirupsen/logrus"
)

// WriteNodes merges node records in UNWIND batches. Batches are idempotent:
// re-submitting one after a partial failure converges on the same graph.
func WriteNodes(ctx context.Context, x Executor, m *config.NodeMapping, records []mapping.Node, batchSize, maxRetries int) error {
	if batchSize < 1 {
		batchSize = 1
	}
	for start := 0; start < len(records); start += batchSize {
		var end = start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := submitWithRetry(ctx, x, nodeUpsertStatement(m, records[start:end]), maxRetries); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNodes detaches and deletes node records in UNWIND batches.
func DeleteNodes(ctx context.Context, x Executor, m *config.NodeMapping, records []mapping.Node, batchSize, maxRetries int) error {
	if batchSize < 1 {
		batchSize = 1
	}
	for start := 0; start < len(records); start += batchSize {
		var end = start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := submitWithRetry(ctx, x, nodeDeleteStatement(m, records[start:end]), maxRetries); err != nil {
			return err
		}
	}
	return nil
}

// WriteEdges merges edge records in UNWIND batches. Endpoint labels are
// resolved by the caller from the referenced node mappings.
func WriteEdges(ctx context.Context, x Executor, m *config.EdgeMapping, fromLabels, toLabels []string, records []mapping.Edge, batchSize, maxRetries int) error {
	if batchSize < 1 {
		batchSize = 1
	}
	for start := 0; start < len(records); start += batchSize {
		var end = start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := submitWithRetry(ctx, x, edgeUpsertStatement(m, fromLabels, toLabels, records[start:end]), maxRetries); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEdges removes edge records in UNWIND batches.
func DeleteEdges(ctx context.Context, x Executor, m *config.EdgeMapping, fromLabels, toLabels []string, records []mapping.Edge, batchSize, maxRetries int) error {
	if batchSize < 1 {
		batchSize = 1
	}
	for start := 0; start < len(records); start += batchSize {
		var end = start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := submitWithRetry(ctx, x, edgeDeleteStatement(m, fromLabels, toLabels, records[start:end]), maxRetries); err != nil {
			return err
		}
	}
	return nil
}

// submitWithRetry runs one statement, retrying failures up to maxRetries
// times with exponential backoff. The first attempt is immediate.
func submitWithRetry(ctx context.Context, x Executor, statement string, maxRetries int) error {
	for attempt := 0; ; attempt++ {
		var err = x.Query(ctx, statement)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return fmt.Errorf("graph batch failed after %d attempts: %w", attempt+1, err)
		}
		log.WithFields(log.Fields{
			"attempt": attempt + 1,
			"err":     err,
		}).Warn("graph batch failed (will retry)")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt + 1)):
			// Fallthrough to retry.
		}
	}
}

func backoff(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	return time.Millisecond * 50 << uint(attempt)
}

// EnsureIndexes creates the key-property index behind each node mapping's
// MERGE lookup. Failures are logged and swallowed; the index may already
// exist on the server.
func EnsureIndexes(ctx context.Context, x Executor, mappings []config.Mapping) {
	var seen = make(map[string]bool)
	for i := range mappings {
		var node = mappings[i].Node
		if node == nil {
			continue
		}
		var stmt = indexStatement(node.Labels, node.Key.Property)
		if seen[stmt] {
			continue
		}
		seen[stmt] = true

		if err := x.Query(ctx, stmt); err != nil {
			log.WithFields(log.Fields{
				"mapping": node.Name,
				"err":     err,
			}).Warn("failed to create index")
		}
	}
}

// PurgeGraph deletes every node and relationship in the graph.
func PurgeGraph(ctx context.Context, x Executor) error {
	return x.Query(ctx, "MATCH (n) DETACH DELETE n")
}

// PurgeNodes deletes every node carrying the mapping's full label set.
func PurgeNodes(ctx context.Context, x Executor, m *config.NodeMapping) error {
	return x.Query(ctx, purgeNodesStatement(m))
}

// PurgeEdges deletes the mapping's typed relationships between its endpoint
// labels, honoring the configured direction.
func PurgeEdges(ctx context.Context, x Executor, m *config.EdgeMapping, fromLabels, toLabels []string) error {
	return x.Query(ctx, purgeEdgesStatement(m, fromLabels, toLabels))
}
