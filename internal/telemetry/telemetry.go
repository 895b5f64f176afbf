// Package telemetry exports run counters as Prometheus metrics.
//
// A Recorder owns its registry so several runs in one process do not
// collide. All methods are safe on a nil *Recorder, which records nothing.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the metric vectors of one run, labelled by rank.
type Recorder struct {
	reg *prometheus.Registry

	steps        *prometheus.CounterVec
	builds       *prometheus.CounterVec
	dangerous    *prometheus.CounterVec
	exchanged    *prometheus.CounterVec
	ghosts       *prometheus.GaugeVec
	owned        *prometheus.GaugeVec
	pairs        *prometheus.GaugeVec
	stepDuration *prometheus.HistogramVec
	temperature  prometheus.Gauge
	energy       prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdcore_steps_total",
			Help: "Timesteps completed",
		}, []string{"rank"}),
		builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdcore_neighbor_builds_total",
			Help: "Neighbor list rebuilds",
		}, []string{"rank"}),
		dangerous: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdcore_neighbor_dangerous_builds_total",
			Help: "Rebuilds on the first step a rebuild was allowed",
		}, []string{"rank"}),
		exchanged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdcore_atoms_exchanged_total",
			Help: "Particles migrated to another rank",
		}, []string{"rank"}),
		ghosts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdcore_ghost_atoms",
			Help: "Ghost particles held",
		}, []string{"rank"}),
		owned: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdcore_owned_atoms",
			Help: "Owned particles held",
		}, []string{"rank"}),
		pairs: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdcore_neighbor_pairs",
			Help: "Entries in the perpetual neighbor list",
		}, []string{"rank"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdcore_step_duration_seconds",
			Help:    "Wall time of one timestep",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"rank"}),
		temperature: f.NewGauge(prometheus.GaugeOpts{
			Name: "mdcore_temperature",
			Help: "Last reported temperature",
		}),
		energy: f.NewGauge(prometheus.GaugeOpts{
			Name: "mdcore_total_energy",
			Help: "Last reported total energy",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Rank is what a rank reports after a step.
type Rank struct {
	Rank      int
	Owned     int
	Ghosts    int
	Pairs     int
	Builds    int64
	Dangerous int64
	Exchanged int64
	Elapsed   time.Duration
}

// Step records one completed step of a rank. Builds, Dangerous and
// Exchanged are increments since the previous call.
func (r *Recorder) Step(s Rank) {
	if r == nil {
		return
	}
	l := strconv.Itoa(s.Rank)
	r.steps.WithLabelValues(l).Inc()
	r.builds.WithLabelValues(l).Add(float64(s.Builds))
	r.dangerous.WithLabelValues(l).Add(float64(s.Dangerous))
	r.exchanged.WithLabelValues(l).Add(float64(s.Exchanged))
	r.ghosts.WithLabelValues(l).Set(float64(s.Ghosts))
	r.owned.WithLabelValues(l).Set(float64(s.Owned))
	r.pairs.WithLabelValues(l).Set(float64(s.Pairs))
	r.stepDuration.WithLabelValues(l).Observe(s.Elapsed.Seconds())
}

// Thermo records the global observables of a thermo row.
func (r *Recorder) Thermo(temp, etotal float64) {
	if r == nil {
		return
	}
	r.temperature.Set(temp)
	r.energy.Set(etotal)
}
