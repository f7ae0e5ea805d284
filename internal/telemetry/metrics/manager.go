package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterMutations          *prometheus.CounterVec
	CounterBackupExports      prometheus.Counter
	CounterBackupRestores     prometheus.Counter
	CounterPersistFailures    prometheus.Counter
	CounterHandleRequestPanic prometheus.Counter

	// gauges
	GaugeLifeSignal prometheus.Gauge
	GaugeClients    prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("traintrack", "test_server", prometheus.NewRegistry())
}

func SetupPrometheus() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterMutations := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "store_mutations",
		Help:      "The total number of store mutations, per operation and outcome",
	}, []string{"op", "outcome"})
	counterBackupExports := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "backup_exports",
		Help:      "The total number of backup exports",
	})
	counterBackupRestores := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "backup_restores",
		Help:      "The total number of backup restores",
	})
	counterPersistFailures := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "persist_failures",
		Help:      "The total number of failed state persist attempts",
	})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})

	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})
	gaugeClients := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "clients",
		Help:      "Current number of clients in the store",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "status_code"})

	return &Manager{
		CounterRequests:           counterRequests,
		CounterMutations:          counterMutations,
		CounterBackupExports:      counterBackupExports,
		CounterBackupRestores:     counterBackupRestores,
		CounterPersistFailures:    counterPersistFailures,
		CounterHandleRequestPanic: counterHandleRequestPanic,
		GaugeLifeSignal:           gaugeLifeSignal,
		GaugeClients:              gaugeClients,
		HistogramRequestDuration:  histogramRequestDuration,
	}
}
