// Package metrics defines Prometheus metrics for config spec evaluation,
// the listing cache and history classification.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thiagokokada/ccview-go/internal/history"
)

const namespace = "ccview"

// Evaluation outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeNone      = "none"
	OutcomeAmbiguous = "ambiguous"
	OutcomeError     = "error"
)

// Recorder holds every metric. A nil *Recorder ignores all calls.
type Recorder struct {
	registry *prometheus.Registry

	Evaluations        *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	HistoryElements    *prometheus.CounterVec
	CollectionDuration prometheus.Histogram
	Modifications      prometheus.Counter
}

// New registers every metric on a private registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Config spec evaluations by outcome.",
		}, []string{"kind", "outcome"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Directory listing cache lookups by result.",
		}, []string{"result"}),
		HistoryElements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "elements_total",
			Help:      "History elements seen by the classifier, by disposition.",
		}, []string{"disposition"}),
		CollectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "collection_duration_seconds",
			Help:      "Time spent collecting changes.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		Modifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "modifications_total",
			Help:      "Modifications returned by change collection.",
		}),
	}
}

// Registry returns the registry the metrics live in.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Evaluation counts one config spec evaluation for a file or directory.
func (r *Recorder) Evaluation(isFile bool, outcome string) {
	if r == nil {
		return
	}
	kind := "directory"
	if isFile {
		kind = "file"
	}
	r.Evaluations.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// Classified adds the counters of one classifier run.
func (r *Recorder) Classified(s history.Stats) {
	if r == nil {
		return
	}
	add := func(disposition string, n int) {
		if n > 0 {
			r.HistoryElements.WithLabelValues(disposition).Add(float64(n))
		}
	}
	add("unclassified", s.Unclassified)
	add("outside_view", s.OutsideView)
	add("accepted", s.Accepted)
	add("ignored", s.Ignored)
	add("dispatched", s.Dispatched)
}

// Collection records one finished change collection.
func (r *Recorder) Collection(d time.Duration, modifications int) {
	if r == nil {
		return
	}
	r.CollectionDuration.Observe(d.Seconds())
	r.Modifications.Add(float64(modifications))
}
