package metrics

import (
	"net/http"
	"strconv"

	"github.com/fjod/med_store/internal/cart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	registry *prometheus.Registry

	cartMutations   *prometheus.CounterVec
	persistFailures prometheus.Counter
	cartUnits       prometheus.Histogram
	httpRequests    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Applied cart mutations by operation.",
		}, []string{"op"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Cart mutations whose snapshot could not be written.",
		}),
		cartUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_units",
			Help:      "Units in a cart after each applied mutation.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cartMutations,
		m.persistFailures,
		m.cartUnits,
		m.httpRequests,
	)
	return m
}

// ObserveCart is a cart.Listener.
func (m *Metrics) ObserveCart(change cart.Change) {
	m.cartMutations.WithLabelValues(string(change.Op)).Inc()
	if change.PersistErr != nil {
		m.persistFailures.Inc()
	}
	m.cartUnits.Observe(float64(change.Count))
}

func (m *Metrics) ObserveRequest(route string, code int) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
