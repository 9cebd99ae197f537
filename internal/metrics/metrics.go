package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SetpointPosition = "position"
	SetpointVelocity = "velocity"
)

// Collector bundles Prometheus metrics for the navigation core. A nil
// *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Setpoints           *prometheus.CounterVec
	PhaseTicks          *prometheus.CounterVec
	Missions            *prometheus.CounterVec
	WaypointsReached    prometheus.Counter
	Avoidances          prometheus.Counter
	UnresolvedConflicts prometheus.Counter
	GotoDurations       prometheus.Histogram
}

// NewCollector registers navigation metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	setpoints, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigator_setpoints_total",
		Help: "Total number of setpoints sent to the vehicle, labeled by kind.",
	}, []string{"kind"}), "navigator_setpoints_total")
	if err != nil {
		return nil, err
	}

	phaseTicks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigator_orbit_phase_ticks_total",
		Help: "Control ticks spent in each orbit maneuver phase.",
	}, []string{"phase"}), "navigator_orbit_phase_ticks_total")
	if err != nil {
		return nil, err
	}

	missions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigator_missions_total",
		Help: "Completed mission runs, labeled by result.",
	}, []string{"result"}), "navigator_missions_total")
	if err != nil {
		return nil, err
	}

	reached, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "navigator_waypoints_reached_total",
		Help: "Waypoints reached during missions.",
	}), "navigator_waypoints_reached_total")
	if err != nil {
		return nil, err
	}

	avoidances, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "navigator_avoidances_total",
		Help: "Obstacle avoidance detours flown.",
	}), "navigator_avoidances_total")
	if err != nil {
		return nil, err
	}

	unresolved, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "navigator_unresolved_conflicts_total",
		Help: "Obstacle conflicts for which no bypass point exists.",
	}), "navigator_unresolved_conflicts_total")
	if err != nil {
		return nil, err
	}

	gotoDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "navigator_goto_duration_seconds",
		Help:    "Duration of straight-line goto transits.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}), "navigator_goto_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:            gatherer,
		Setpoints:           setpoints,
		PhaseTicks:          phaseTicks,
		Missions:            missions,
		WaypointsReached:    reached,
		Avoidances:          avoidances,
		UnresolvedConflicts: unresolved,
		GotoDurations:       gotoDurations,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) SetpointSent(kind string) {
	if c == nil {
		return
	}
	c.Setpoints.WithLabelValues(kind).Inc()
}

func (c *Collector) PhaseTick(phase string) {
	if c == nil {
		return
	}
	c.PhaseTicks.WithLabelValues(phase).Inc()
}

func (c *Collector) WaypointReached() {
	if c == nil {
		return
	}
	c.WaypointsReached.Inc()
}

func (c *Collector) Avoided() {
	if c == nil {
		return
	}
	c.Avoidances.Inc()
}

func (c *Collector) UnresolvedConflict() {
	if c == nil {
		return
	}
	c.UnresolvedConflicts.Inc()
}

func (c *Collector) ObserveGoto(d time.Duration) {
	if c == nil {
		return
	}
	c.GotoDurations.Observe(d.Seconds())
}

// MissionFinished records the outcome of a mission run
func (c *Collector) MissionFinished(err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.Missions.WithLabelValues(result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
