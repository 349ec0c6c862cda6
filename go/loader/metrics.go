package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_runs",
		Help: "Count of sync runs started.",
	})
	failedRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_failed_runs",
		Help: "Count of sync runs that ended in an error.",
	})
	rowsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_rows_fetched",
		Help: "Count of rows fetched from sources.",
	})
	rowsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_rows_written",
		Help: "Count of node and edge records written to the graph.",
	})
	rowsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_rows_deleted",
		Help: "Count of node and edge records deleted from the graph.",
	})
)

var (
	mappingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_mapping_runs",
		Help: "Count of executions, by mapping.",
	}, []string{"mapping"})
	mappingFailedRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_mapping_failed_runs",
		Help: "Count of executions that ended in an error, by mapping.",
	}, []string{"mapping"})
	mappingRowsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_mapping_rows_fetched",
		Help: "Count of rows fetched, by mapping.",
	}, []string{"mapping"})
	mappingRowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_mapping_rows_written",
		Help: "Count of records written, by mapping.",
	}, []string{"mapping"})
	mappingRowsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowflake_to_falkordb_mapping_rows_deleted",
		Help: "Count of records deleted, by mapping.",
	}, []string{"mapping"})
)
