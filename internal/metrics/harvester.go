package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethpandaops/quake-harvester/internal/harvester"
	"github.com/ethpandaops/quake-harvester/internal/window"
)

const namespace = "quake_harvester"

// Compile-time interface compliance check.
var _ harvester.Observer = (*HarvesterObserver)(nil)

// HarvesterObserver exports cycle outcomes as Prometheus metrics.
type HarvesterObserver struct {
	cycles      *prometheus.CounterVec
	errors      *prometheus.CounterVec
	records     prometheus.Counter
	floorHits   prometheus.Counter
	oracleCalls prometheus.Counter
	windowSpan  prometheus.Histogram
	cursorLag   prometheus.Gauge
	emptyCycles prometheus.Gauge
	now         func() time.Time
}

// NewHarvesterObserver creates the collectors and registers them with reg.
func NewHarvesterObserver(reg prometheus.Registerer) *HarvesterObserver {
	o := &HarvesterObserver{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Harvest cycles by outcome",
			},
			[]string{"status"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycle_errors_total",
				Help:      "Failed harvest cycles by cause",
			},
			[]string{"kind"},
		),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_delivered_total",
			Help:      "Records delivered to the sink",
		}),
		floorHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_floor_hits_total",
			Help:      "Windows accepted at the bisection floor while still over the count bound",
		}),
		oracleCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Count queries issued while resolving windows",
		}),
		windowSpan: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_span_seconds",
			Help:      "Width of delivered windows in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 4, 12),
		}),
		cursorLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_lag_seconds",
			Help:      "Seconds between the cursor and wall clock after the last cycle",
		}),
		emptyCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_empty_cycles",
			Help:      "Consecutive cycles without new records",
		}),
		now: time.Now,
	}

	reg.MustRegister(
		o.cycles,
		o.errors,
		o.records,
		o.floorHits,
		o.oracleCalls,
		o.windowSpan,
		o.cursorLag,
		o.emptyCycles,
	)

	return o
}

func (o *HarvesterObserver) CycleCompleted(res harvester.Result, state harvester.State) {
	o.cycles.WithLabelValues(string(res.Status)).Inc()
	o.oracleCalls.Add(float64(res.Resolution.OracleCalls))
	o.emptyCycles.Set(float64(state.EmptyCycles))
	o.cursorLag.Set(o.now().Sub(state.Cursor).Seconds())

	if res.Status == harvester.StatusReady {
		o.records.Add(float64(res.Records))
		o.windowSpan.Observe(res.Window.Span().Seconds())
	}
}

func (o *HarvesterObserver) CycleFailed(err error, state harvester.State) {
	o.cycles.WithLabelValues(string(harvester.StatusError)).Inc()
	o.errors.WithLabelValues(errorKind(err)).Inc()
	o.cursorLag.Set(o.now().Sub(state.Cursor).Seconds())
}

func (o *HarvesterObserver) WindowFloorHit(_ window.Window, _ window.Resolution) {
	o.floorHits.Inc()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, window.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, window.ErrOracle):
		return "oracle"
	case errors.Is(err, harvester.ErrFetch):
		return "fetch"
	case errors.Is(err, harvester.ErrSink):
		return "sink"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
