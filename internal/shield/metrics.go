package shield

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: запросы на допуск, по исходу
	AdmissionTotal *prometheus.CounterVec

	// Errors: классификация отказов допуска (какая проверка сработала)
	DenialTotal *prometheus.CounterVec

	// Расчеты сессий: success / failed / expired
	SettlementTotal *prometheus.CounterVec

	// Latency обработки операций ядра
	OpDuration *prometheus.HistogramVec

	// Собранные комиссии по типу (protocol / developer)
	FeesCollected *prometheus.CounterVec

	// Saturation: живые сессии и заполненность скользящего окна
	LiveSessions    prometheus.Gauge
	RollingEntries  *prometheus.GaugeVec
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — без регистра метрики просто никуда не подключены
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		AdmissionTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shield_admissions_total",
			Help: "Total number of admission requests by outcome.",
		}, []string{"outcome"}), // authorized | denied

		DenialTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shield_denials_total",
			Help: "Total number of denied admissions by reason.",
		}, []string{"reason"}),

		SettlementTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shield_settlements_total",
			Help: "Total number of finalized sessions by outcome.",
		}, []string{"outcome"}), // success | failed | expired

		OpDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shield_op_duration_seconds",
			Help:    "Histogram of core operation latencies.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op", "status"}),

		FeesCollected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shield_fees_collected_total",
			Help: "Cumulative fees moved at settlement, by fee type.",
		}, []string{"fee_type"}), // protocol | developer

		LiveSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shield_live_sessions",
			Help: "Current number of outstanding session authorities.",
		}),

		RollingEntries: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "shield_rolling_spend_entries",
			Help: "Live entries in the rolling spend window per vault.",
		}, []string{"vault"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shield_audit_buffer_utilization",
			Help: "Current number of events in the audit trail buffer.",
		}),
	}
}
