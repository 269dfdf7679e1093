package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is what the services report to. Prometheus backs it in production.
type Metrics interface {
	IncResultsSubmitted()
	IncLiveScoreUpdates()
	IncMatchResets()
	IncAdvancement(policy string)
	IncPlayoffRecalculations()
	ObserveAdvancementDuration(duration float64)
}

var _ Metrics = (*Service)(nil)

type Service struct {
	ResultsSubmitted      prometheus.Counter
	LiveScoreUpdates      prometheus.Counter
	MatchResets           prometheus.Counter
	Advancements          *prometheus.CounterVec
	PlayoffRecalculations prometheus.Counter
	AdvancementDuration   prometheus.Histogram
}

// NewMetricsHandler returns an http.Handler for the given Gatherer, or the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the bracket metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		ResultsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brackets_results_submitted_total",
			Help: "The total number of match results submitted.",
		}),
		LiveScoreUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brackets_live_score_updates_total",
			Help: "The total number of live score updates.",
		}),
		MatchResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brackets_match_resets_total",
			Help: "The total number of matches reset by an operator.",
		}),
		Advancements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brackets_advancements_total",
			Help: "The total number of advancement passes that changed the bracket, by policy.",
		}, []string{"policy"}),
		PlayoffRecalculations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brackets_playoff_recalculations_total",
			Help: "The total number of forced playoff recalculations.",
		}),
		AdvancementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brackets_advancement_duration_seconds",
			Help:    "The duration of a result submission including its advancement pass.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}

	reg.MustRegister(
		s.ResultsSubmitted,
		s.LiveScoreUpdates,
		s.MatchResets,
		s.Advancements,
		s.PlayoffRecalculations,
		s.AdvancementDuration,
	)

	return s
}

func (s *Service) IncResultsSubmitted() {
	s.ResultsSubmitted.Inc()
}

func (s *Service) IncLiveScoreUpdates() {
	s.LiveScoreUpdates.Inc()
}

func (s *Service) IncMatchResets() {
	s.MatchResets.Inc()
}

func (s *Service) IncAdvancement(policy string) {
	s.Advancements.WithLabelValues(policy).Inc()
}

func (s *Service) IncPlayoffRecalculations() {
	s.PlayoffRecalculations.Inc()
}

func (s *Service) ObserveAdvancementDuration(duration float64) {
	s.AdvancementDuration.Observe(duration)
}

// Nop discards everything. It is the default for services built without metrics.
type Nop struct{}

func (Nop) IncResultsSubmitted() {}
func (Nop) IncLiveScoreUpdates() {}
func (Nop) IncMatchResets() {}
func (Nop) IncAdvancement(string) {}
func (Nop) IncPlayoffRecalculations() {}
func (Nop) ObserveAdvancementDuration(float64) {}
