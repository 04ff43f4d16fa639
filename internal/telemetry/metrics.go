// Package telemetry exposes prometheus collectors and trace spans for the
// generation loop.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pdevo/internal/model"
)

const namespace = "pdevo"

// Metrics holds the collectors for one registry. Use NewMetrics with
// prometheus.NewRegistry() in tests to keep them isolated.
type Metrics struct {
	Generations        prometheus.Counter
	Games              prometheus.Counter
	Rounds             prometheus.Counter
	Culled             prometheus.Counter
	EvolutionFailures  prometheus.Counter
	Population         *prometheus.GaugeVec
	BestScore          prometheus.Gauge
	MeanScore          prometheus.Gauge
	GenerationDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Generations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Completed generations",
		}),
		Games: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "games_total",
			Help:      "Games played across all generations",
		}),
		Rounds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rounds_total",
			Help:      "Rounds played across all games",
		}),
		Culled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "culled_total",
			Help:      "Prisoners removed by selection",
		}),
		EvolutionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "evolution_failures_total",
			Help:      "Generations aborted because a prisoner could not reproduce",
		}),
		Population: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "population",
			Name:      "members",
			Help:      "Current members per strategy kind",
		}, []string{"kind"}),
		BestScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "population",
			Name:      "best_score",
			Help:      "Highest cumulative score of the last generation",
		}),
		MeanScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "population",
			Name:      "mean_score",
			Help:      "Mean cumulative score of the last generation",
		}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a single generation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// SetPopulation publishes counts. Kinds that died out stay at zero.
func (m *Metrics) SetPopulation(counts map[string]int) {
	for kind, count := range counts {
		m.Population.WithLabelValues(kind).Set(float64(count))
	}
}

func (m *Metrics) RecordGeneration(report model.GenerationReport, elapsed time.Duration) {
	m.Generations.Inc()
	m.Games.Add(float64(report.Games))
	m.Rounds.Add(float64(report.Rounds))
	m.Culled.Add(float64(report.Culled))
	m.BestScore.Set(report.BestScore)
	m.MeanScore.Set(report.MeanScore)
	m.GenerationDuration.Observe(elapsed.Seconds())
	m.SetPopulation(report.CountsAfter)
}

func (m *Metrics) RecordEvolutionFailure() {
	m.EvolutionFailures.Inc()
}
