package processor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks per-instruction throughput and rejection counts, following
// the CounterVec-behind-sync.Once registration pattern used elsewhere in
// this codebase for subsystem metrics.
type Metrics struct {
	instructionsTotal *prometheus.CounterVec
}

var (
	processorMetricsOnce sync.Once
	processorMetrics     *Metrics
)

// NewMetrics returns the process-wide singleton Metrics, registering its
// collectors with reg on first call. Subsequent calls ignore reg and return
// the already-registered singleton, matching Prometheus's requirement that a
// collector only ever be registered once per registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	processorMetricsOnce.Do(func() {
		m := &Metrics{
			instructionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stake_program",
				Name:      "instructions_total",
				Help:      "Count of stake program instructions processed, by instruction and outcome.",
			}, []string{"instruction", "outcome"}),
		}
		reg.MustRegister(m.instructionsTotal)
		processorMetrics = m
	})
	return processorMetrics
}

// ObserveInstruction records one processed instruction.
func (m *Metrics) ObserveInstruction(instruction string, ok bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if ok {
		outcome = "applied"
	}
	m.instructionsTotal.WithLabelValues(instruction, outcome).Inc()
}
