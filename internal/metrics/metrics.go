package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the app's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	verifications  *prometheus.CounterVec
	tokenExchanges *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	events         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appsystem_signature_verifications_total",
			Help: "Inbound signature checks by request kind and result.",
		}, []string{"kind", "result"}),
		tokenExchanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appsystem_token_exchanges_total",
			Help: "OAuth client-credentials exchanges by result.",
		}, []string{"result"}),
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appsystem_registrations_total",
			Help: "Registration handshake steps by result.",
		}, []string{"step", "result"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appsystem_events_total",
			Help: "Verified shop events by type.",
		}, []string{"type", "name"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Verification(kind string, ok bool) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(kind, result(ok)).Inc()
}

func (m *Metrics) TokenExchange(err error) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(result(err == nil)).Inc()
}

func (m *Metrics) Registration(step string, ok bool) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(step, result(ok)).Inc()
}

func (m *Metrics) Event(typ, name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(typ, name).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
