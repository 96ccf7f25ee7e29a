// Package metrics exposes booking business metrics in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/resource-booking/internal/model"
)

// DurationBuckets span five minutes to one day, in seconds.
var DurationBuckets = []float64{300, 600, 1800, 3600, 7200, 14400, 28800, 86400}

// Booking counts confirmed and cancelled bookings and records how long the
// confirmed ones are. Per-customer labels are left out to keep series
// cardinality bounded by the number of resources.
type Booking struct {
	source    string
	created   *prometheus.CounterVec
	cancelled *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewBooking registers the booking collectors on reg. source names the
// surface that produced the bookings, for example "api".
func NewBooking(reg prometheus.Registerer, source string) (*Booking, error) {
	m := &Booking{
		source: source,
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_created_total",
			Help: "Total number of bookings created",
		}, []string{"source", "resource_id"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_cancelled_total",
			Help: "Total number of bookings cancelled",
		}, []string{"source", "resource_id"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booking_duration_seconds",
			Help:    "Duration of bookings in seconds",
			Buckets: DurationBuckets,
		}, []string{"resource_id"}),
	}
	for _, c := range []prometheus.Collector{m.created, m.cancelled, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Booking) RecordCreated(b model.Booking) {
	rid := strconv.FormatUint(b.ResourceID, 10)
	m.created.WithLabelValues(m.source, rid).Inc()
	m.duration.WithLabelValues(rid).Observe(b.End.Sub(b.Start).Seconds())
}

func (m *Booking) RecordCancelled(b model.Booking) {
	m.cancelled.WithLabelValues(m.source, strconv.FormatUint(b.ResourceID, 10)).Inc()
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the text exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
