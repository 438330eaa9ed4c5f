package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GraphPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_passes_total",
		Help: "Total number of execution passes, labelled by mode (full|partial) and outcome.",
	}, []string{"mode", "outcome"})

	NodeUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_node_updates_total",
		Help: "Total number of node updates run, labelled by node type and status.",
	}, []string{"node_type", "status"})

	CyclicGraphErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodegraph_cyclic_graph_errors_total",
		Help: "Total number of passes aborted because the graph contains a cycle.",
	})

	TopologyRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodegraph_topology_rebuilds_total",
		Help: "Total number of times the derived projection was rebuilt.",
	})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nodegraph_pass_duration_ms",
		Help:    "Execution pass latency in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodegraph_nodes",
		Help: "Current number of nodes in the graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodegraph_edges",
		Help: "Current number of edges in the graph.",
	})

	CommandsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodegraph_commands_enqueued_total",
		Help: "Total number of commands placed on the editor command queue.",
	})

	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_commands_processed_total",
		Help: "Total number of commands run, labelled by status.",
	}, []string{"status"})

	CommandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodegraph_commands_dropped_total",
		Help: "Total number of commands rejected due to a full queue.",
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodegraph_queue_utilization_ratio",
		Help: "Current command queue utilization (0–1).",
	})

	LoadSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_load_skipped_total",
		Help: "Entities skipped while loading a document, labelled by entity and reason.",
	}, []string{"entity", "reason"})

	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_config_reloads_total",
		Help: "Config reload attempts, labelled by outcome.",
	}, []string{"outcome"})
)
