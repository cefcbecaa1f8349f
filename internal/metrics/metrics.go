// Package metrics expõe métricas Prometheus do agendador.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botalertas_ticks_total",
		Help: "Número de ticks do agendador executados.",
	})

	DueChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botalertas_due_checks_total",
		Help: "Verificações de alertas por resultado.",
	}, []string{"outcome"})

	CheckpointErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botalertas_checkpoint_errors_total",
		Help: "Falhas ao registrar a última verificação.",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botalertas_notifications_total",
		Help: "Notificações enviadas por status.",
	}, []string{"status"})

	RenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "botalertas_render_duration_seconds",
		Help:    "Duração das renderizações de página.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90},
	})
)

// Handler retorna o handler HTTP de /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
