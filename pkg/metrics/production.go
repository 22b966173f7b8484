package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProductionMetrics tracks the production lifecycle and material consumption.
type ProductionMetrics struct {
	jobsCreated         prometheus.Counter
	jobsCompleted       prometheus.Counter
	stageTransitions    *prometheus.CounterVec
	consumptionRejected *prometheus.CounterVec
	lowStock            prometheus.Counter
}

// NewProductionMetrics registers the production metrics on reg. A nil
// registerer yields a no-op recorder.
func NewProductionMetrics(reg prometheus.Registerer) *ProductionMetrics {
	if reg == nil {
		return &ProductionMetrics{}
	}
	m := &ProductionMetrics{
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furni_production_jobs_created_total",
			Help: "Production jobs created on order acceptance.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furni_production_jobs_completed_total",
			Help: "Production jobs that reached Completed.",
		}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "furni_production_stage_transitions_total",
			Help: "Process step transitions by trigger.",
		}, []string{"trigger"}),
		consumptionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "furni_consumption_rejected_total",
			Help: "Order acceptances rejected by the consumption engine.",
		}, []string{"code"}),
		lowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furni_inventory_low_stock_total",
			Help: "Materials that crossed their reorder point.",
		}),
	}
	reg.MustRegister(m.jobsCreated, m.jobsCompleted, m.stageTransitions, m.consumptionRejected, m.lowStock)
	return m
}

func (m *ProductionMetrics) IncJobsCreated() {
	if m == nil || m.jobsCreated == nil {
		return
	}
	m.jobsCreated.Inc()
}

func (m *ProductionMetrics) IncJobsCompleted() {
	if m == nil || m.jobsCompleted == nil {
		return
	}
	m.jobsCompleted.Inc()
}

// AddStageTransitions counts n step transitions caused by trigger.
func (m *ProductionMetrics) AddStageTransitions(trigger string, n int) {
	if m == nil || m.stageTransitions == nil || n <= 0 {
		return
	}
	m.stageTransitions.WithLabelValues(normalizeLabel(trigger)).Add(float64(n))
}

func (m *ProductionMetrics) IncConsumptionRejected(code string) {
	if m == nil || m.consumptionRejected == nil {
		return
	}
	m.consumptionRejected.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *ProductionMetrics) IncLowStock() {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Inc()
}
