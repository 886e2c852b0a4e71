package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marui_parsing_seconds",
		Help:    "Time spent extracting imports from a Python file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	FilesParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marui_files_parsed_total",
		Help: "Total number of Python files whose imports were extracted.",
	}, []string{"mode"})

	ParseCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marui_parse_cache_hits_total",
		Help: "Total number of files served from the parse cache.",
	})

	GraphModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marui_graph_modules_total",
		Help: "Number of modules in the last analyzed catalog.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marui_graph_edges_total",
		Help: "Number of resolved import edges in the last analyzed catalog.",
	})

	CyclesFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marui_cycles_total",
		Help: "Number of circular import chains found by the last analysis.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marui_analysis_seconds",
		Help:    "Time spent on pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marui_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherRescansThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marui_watcher_rescans_throttled_total",
		Help: "Total number of change batches delayed by the rescan rate limit.",
	})

	HistoryWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marui_history_writes_total",
		Help: "Total number of history writes by result.",
	}, []string{"result"})
)
