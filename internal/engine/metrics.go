package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedgraph_batches_total",
		Help: "Cumulative number of batches persisted",
	})
	batchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedgraph_batch_failures_total",
		Help: "Cumulative number of batches aborted, by phase",
	}, []string{"phase"})
	recordsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedgraph_records_written_total",
		Help: "Cumulative number of records persisted, by table",
	}, []string{"table"})
	statementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedgraph_statements_total",
		Help: "Cumulative number of statements queued in persisted batches",
	})
	readTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedgraph_read_tokens_total",
		Help: "Cumulative number of result tokens read back",
	})
	brokenEdgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedgraph_broken_edges_total",
		Help: "Cumulative number of foreign keys omitted to break reference cycles",
	})
	batchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seedgraph_batch_duration_seconds",
		Help:    "Duration of successful Persist calls",
		Buckets: prometheus.DefBuckets,
	})
)

func observeBatch(r *Report) {
	batchesTotal.Inc()
	for table, n := range r.Tables() {
		recordsWrittenTotal.WithLabelValues(table).Add(float64(n))
	}
	statementsTotal.Add(float64(r.Statements))
	readTokensTotal.Add(float64(r.Tokens))
	brokenEdgesTotal.Add(float64(len(r.Broken)))
	batchDurationSeconds.Observe(r.Duration.Seconds())
}

func observeFailure(phase string) {
	batchFailuresTotal.WithLabelValues(phase).Inc()
}
