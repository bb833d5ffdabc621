// Package metrics exposes server instrumentation through Prometheus. The
// chat server and API record through the Provider interface so tests can
// substitute a mock.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names accepted by Incr/Decr.
const (
	ActiveConnections   = "active_connections"
	LoadedChats         = "loaded_chats"
	MessagesRelayed     = "messages_relayed"
	NotificationsPushed = "notifications_pushed"
	ModerationActions   = "moderation_actions"
)

type Provider interface {
	Incr(name string)
	Decr(name string)
}

// PromStats implements Provider on top of a dedicated Prometheus registry.
type PromStats struct {
	registry *prometheus.Registry
	gauges   map[string]prometheus.Gauge
	counters map[string]prometheus.Counter
}

func NewPromStats() *PromStats {
	ps := &PromStats{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
		counters: make(map[string]prometheus.Counter),
	}

	for name, help := range map[string]string{
		ActiveConnections: "Current number of connected websocket clients",
		LoadedChats:       "Current number of loaded chat rooms",
	} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "supportchat",
			Name:      name,
			Help:      help,
		})
		ps.registry.MustRegister(g)
		ps.gauges[name] = g
	}

	for name, help := range map[string]string{
		MessagesRelayed:     "Total number of chat messages relayed",
		NotificationsPushed: "Total number of notifications pushed to clients",
		ModerationActions:   "Total number of moderation actions applied",
	} {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supportchat",
			Name:      name,
			Help:      help,
		})
		ps.registry.MustRegister(c)
		ps.counters[name] = c
	}

	return ps
}

func (ps *PromStats) Incr(name string) {
	if c, ok := ps.counters[name]; ok {
		c.Inc()
		return
	}
	if g, ok := ps.gauges[name]; ok {
		g.Inc()
	}
}

// Decr decrements a gauge. Counters are monotonic and ignore Decr.
func (ps *PromStats) Decr(name string) {
	if g, ok := ps.gauges[name]; ok {
		g.Dec()
	}
}

// Handler serves the registry in Prometheus exposition format.
func (ps *PromStats) Handler() http.Handler {
	return promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{})
}
