package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s); processor calls time out at 10s by default ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	}
	return metric
}

// register registers the collector built from m, reusing an already-registered
// collector with the same descriptor (tests build several servers per process).
func register(m *Metric, subsystem string) (prometheus.Collector, error) {
	metric := NewMetric(m, subsystem)
	if err := prometheus.Register(metric); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			metric = are.ExistingCollector
		} else {
			return nil, err
		}
	}
	m.MetricCollector = metric
	return metric, nil
}

var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype", "outcome"},
}

var MetricsWebhookEvents = &Metric{
	ID:          "webhookEvents",
	Name:        "webhook_events_total",
	Description: "Payment processor webhook deliveries, partitioned by topic and outcome.",
	Type:        "counter_vec",
	Args:        []string{"topic", "outcome"},
}

var (
	bpDur         *prometheus.HistogramVec
	webhookEvents *prometheus.CounterVec
)

func init() {
	if c, err := register(MetricsBusinessProcess, ""); err == nil {
		bpDur = c.(*prometheus.HistogramVec)
	}
	if c, err := register(MetricsWebhookEvents, ""); err == nil {
		webhookEvents = c.(*prometheus.CounterVec)
	}
}

// ObserveProcess records the latency of a business operation started at start.
func ObserveProcess(typ, subtype string, start time.Time, err error) {
	if bpDur == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	bpDur.WithLabelValues(typ, subtype, outcome).Observe(MillisecondsSince(start))
}

// IncWebhookEvent counts a webhook delivery by topic and outcome.
func IncWebhookEvent(topic, outcome string) {
	if webhookEvents == nil {
		return
	}
	webhookEvents.WithLabelValues(topic, outcome).Inc()
}

// MillisecondsSince returns the elapsed time since start in fractional milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

const (
	RefererKey = "X-Referer"
)
