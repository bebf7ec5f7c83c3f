package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_cycles_total",
		Help: "Количество запущенных циклов",
	})
	CyclesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_cycles_skipped_total",
		Help: "Триггеры цикла, отброшенные из-за уже идущего цикла",
	})
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_cycle_seconds",
		Help:    "Длительность одного цикла",
		Buckets: prometheus.DefBuckets,
	})
	FreshListings = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_fresh_listings",
		Help: "Свежих объявлений в последнем цикле",
	})
	ListingsDeferred = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_listings_deferred_total",
		Help: "Объявления, отложенные на следующий цикл из-за лимита",
	})
	RevealAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reveal_attempts_total",
		Help: "Попытки раскрытия номера",
	}, []string{"status"})
	RevealFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reveal_fallbacks_total",
		Help: "Раскрытия, завершившиеся подстановкой fallback-номера",
	})
	ChannelSendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channel_send_errors_total",
		Help: "Ошибки отправки по каналам",
	}, []string{"channel"})
	PendingSMSDue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_sms_due",
		Help: "Отложенных SMS, готовых к отправке на момент последнего прохода",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CyclesTotal,
		CyclesSkipped,
		CycleDuration,
		FreshListings,
		ListingsDeferred,
		RevealAttempts,
		RevealFallbacks,
		ChannelSendErrors,
		PendingSMSDue,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
