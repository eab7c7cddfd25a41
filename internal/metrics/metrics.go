// Package metrics counts registry events for prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/totegamma/greenledger"
)

// Sink is a usecase.EventSink that turns events into counters labelled by registry.
type Sink struct {
	events *prometheus.CounterVec
}

// New registers the counters on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Sink {
	return &Sink{
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenledger",
			Name:      "registry_events_total",
			Help:      "Registry events by registry and type.",
		}, []string{"registry", "type"}),
	}
}

func (s *Sink) Emit(_ context.Context, event greenledger.Event) {
	s.events.WithLabelValues(event.Registry, string(event.Type)).Inc()
}
