package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels queries that produced a plan and rows.
	OutcomeSuccess = "success"
	// OutcomeUnsupported labels queries answered with the refusal envelope.
	OutcomeUnsupported = "unsupported"
	// OutcomeInvalid labels queries rejected by plan or parameter validation.
	OutcomeInvalid = "invalid"
	// OutcomeError labels queries that failed (structural errors, dataset missing).
	OutcomeError = "error"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unifyiq",
			Name:      "queries_total",
			Help:      "Total number of questions handled, partitioned by planner and outcome.",
		},
		[]string{"planner", "outcome"},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "unifyiq",
			Name:      "query_seconds",
			Help:      "End-to-end question latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	plannerFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unifyiq",
			Name:      "planner_fallbacks_total",
			Help:      "LLM planning attempts that fell back to the rule planner, by reason.",
		},
		[]string{"reason"},
	)

	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unifyiq",
			Name:      "dataset_reloads_total",
			Help:      "Dataset build attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	datasetRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "unifyiq",
			Name:      "dataset_records",
			Help:      "Records in the served dataset, by kind.",
		},
		[]string{"kind"},
	)
)

// Register attaches unifyiq collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		queriesTotal,
		queryDurationSeconds,
		plannerFallbacksTotal,
		reloadsTotal,
		datasetRecords,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveQuery records a question's duration with its planner and outcome labels.
func ObserveQuery(duration time.Duration, planner, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeUnsupported, OutcomeInvalid:
	default:
		outcome = OutcomeError
	}
	if planner == "" {
		planner = "none"
	}
	queriesTotal.WithLabelValues(planner, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	queryDurationSeconds.Observe(duration.Seconds())
}

// IncPlannerFallback counts a fallback from the LLM planner.
func IncPlannerFallback(reason string) {
	plannerFallbacksTotal.WithLabelValues(reason).Inc()
}

// ObserveReload records a dataset build attempt.
func ObserveReload(err error) {
	if err != nil {
		reloadsTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	reloadsTotal.WithLabelValues(OutcomeSuccess).Inc()
}

// SetDatasetSize publishes the size of the served dataset.
func SetDatasetSize(accounts, issues, orphans, rejections int) {
	datasetRecords.WithLabelValues("accounts").Set(float64(accounts))
	datasetRecords.WithLabelValues("issues").Set(float64(issues))
	datasetRecords.WithLabelValues("orphans").Set(float64(orphans))
	datasetRecords.WithLabelValues("rejections").Set(float64(rejections))
}
