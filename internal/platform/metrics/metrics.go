package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus records engine activity as counters.
type Prometheus struct {
	writeFailures  *prometheus.CounterVec
	feedEvents     *prometheus.CounterVec
	staleDropped   *prometheus.CounterVec
	stepsCompleted *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		writeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qc_write_failures_total",
				Help: "Persistence gateway writes that failed and were dropped",
			},
			[]string{"op"},
		),
		feedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qc_feed_events_total",
				Help: "Change feed events processed by the engine",
			},
			[]string{"table", "kind"},
		),
		staleDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qc_stale_writes_dropped_total",
				Help: "Async continuations dropped because the session was replaced",
			},
			[]string{"op"},
		),
		stepsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qc_steps_completed_total",
				Help: "Wizard steps marked complete",
			},
			[]string{"step"},
		),
	}
	if reg != nil {
		reg.MustRegister(p.writeFailures, p.feedEvents, p.staleDropped, p.stepsCompleted)
	}
	return p
}

func (p *Prometheus) WriteFailed(op string) {
	p.writeFailures.WithLabelValues(op).Inc()
}

func (p *Prometheus) FeedEvent(table, kind string) {
	p.feedEvents.WithLabelValues(table, kind).Inc()
}

func (p *Prometheus) StaleWriteDropped(op string) {
	p.staleDropped.WithLabelValues(op).Inc()
}

func (p *Prometheus) StepCompleted(step string) {
	p.stepsCompleted.WithLabelValues(step).Inc()
}

type Noop struct{}

func (Noop) WriteFailed(string)       {}
func (Noop) FeedEvent(string, string) {}
func (Noop) StaleWriteDropped(string) {}
func (Noop) StepCompleted(string)     {}
