package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

var ChainsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "rainbow",
	Subsystem: "builder",
	Name:      "chains_generated_total",
})

var BatchesGenerated = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "rainbow",
	Subsystem: "builder",
	Name:      "batches_total",
})

var TableUniqueness = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "rainbow",
	Subsystem: "builder",
	Name:      "uniqueness_percent",
})

var BuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rainbow",
	Subsystem: "builder",
	Name:      "build_duration_seconds",
	Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600},
})

var CrackResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rainbow",
	Subsystem: "crack",
	Name:      "results_total",
}, []string{"result"})

var CrackDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rainbow",
	Subsystem: "crack",
	Name:      "duration_seconds",
	Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
})

var HashEvaluations = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "rainbow",
	Subsystem: "crack",
	Name:      "hash_evaluations_total",
})

var CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "rainbow",
	Subsystem: "crack",
	Name:      "cache_hits_total",
})

const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var registerOnce sync.Once

// Register adds every collector of the package to the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ChainsGenerated,
			BatchesGenerated,
			TableUniqueness,
			BuildDuration,
			CrackResults,
			CrackDuration,
			HashEvaluations,
			CacheHits,
		)
	})
}

type builderObserver struct{}

// NewBuilderObserver feeds table generation progress into the builder metrics.
func NewBuilderObserver() rainbow.Observer {
	return builderObserver{}
}

func (builderObserver) BatchDone(p rainbow.BatchProgress) {
	ChainsGenerated.Add(float64(p.Size))
	BatchesGenerated.Inc()
}

func (builderObserver) BuildDone(r rainbow.BuildResult) {
	TableUniqueness.Set(r.Uniqueness())
	BuildDuration.Observe(r.Elapsed.Seconds())
}

func ObserveCrack(res rainbow.CrackResult, err error, seconds float64) {
	switch {
	case err != nil:
		CrackResults.WithLabelValues(ResultError).Inc()
	case res.Found:
		CrackResults.WithLabelValues(ResultFound).Inc()
	default:
		CrackResults.WithLabelValues(ResultNotFound).Inc()
	}
	CrackDuration.Observe(seconds)
	HashEvaluations.Add(float64(res.HashEvaluations))
}
