// Package metrics agrupa los contadores Prometheus del servicio.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "panacea"

type Metrics struct {
	registry *prometheus.Registry

	RemindersDispatched *prometheus.CounterVec
	DosesMarkedMissed   prometheus.Counter
	DosesTaken          prometheus.Counter
	SweepRuns           *prometheus.CounterVec
	SweepErrors         *prometheus.CounterVec
	SweepDuration       *prometheus.HistogramVec
}

// New crea un registry propio (no el global) para que los tests puedan
// instanciar varios routers sin colisiones de registro.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		RemindersDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatched_total",
			Help:      "Recordatorios de dosis enviados, por resultado.",
		}, []string{"result"}),
		DosesMarkedMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_marked_missed_total",
			Help:      "Dosis pasadas de upcoming a missed por el sweep horario.",
		}),
		DosesTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_taken_total",
			Help:      "Dosis marcadas como tomadas.",
		}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Ejecuciones de sweeps.",
		}, []string{"sweep"}),
		SweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Ciclos de sweep que terminaron con error.",
		}, []string{"sweep"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duración de cada ciclo de sweep.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sweep"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RemindersDispatched,
		m.DosesMarkedMissed,
		m.DosesTaken,
		m.SweepRuns,
		m.SweepErrors,
		m.SweepDuration,
	)

	return m
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Helpers nil-safe: services y sweeps aceptan *Metrics nil (tests, CLI).

func (m *Metrics) ReminderDispatched(result string) {
	if m == nil {
		return
	}
	m.RemindersDispatched.WithLabelValues(result).Inc()
}

func (m *Metrics) MarkedMissed(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.DosesMarkedMissed.Add(float64(n))
}

func (m *Metrics) DoseTaken() {
	if m == nil {
		return
	}
	m.DosesTaken.Inc()
}

func (m *Metrics) SweepFinished(sweep string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(sweep).Inc()
	m.SweepDuration.WithLabelValues(sweep).Observe(seconds)
	if err != nil {
		m.SweepErrors.WithLabelValues(sweep).Inc()
	}
}
