package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xaenox/calbot/internal/models"
)

// Metrics groups the bot's Prometheus instruments. A nil *Metrics is valid
// and records nothing, so tests and metric-less deployments skip the
// registry entirely.
type Metrics struct {
	messages             *prometheus.CounterVec
	collaboratorFailures *prometheus.CounterVec
	llmLatency           prometheus.Histogram

	server *http.Server
}

// New registers the instruments on the default registry. Call it once per
// process.
func New() *Metrics {
	return &Metrics{
		messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calbot",
			Name:      "messages_total",
			Help:      "Messages handled, labelled by routed intent.",
		}, []string{"intent"}),
		collaboratorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calbot",
			Name:      "collaborator_failures_total",
			Help:      "External collaborator failures, labelled by collaborator.",
		}, []string{"collaborator"}),
		llmLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "calbot",
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of LLM completion calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// MessageRouted counts one handled message for the intent.
func (m *Metrics) MessageRouted(intent models.Intent) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(string(intent)).Inc()
}

// CollaboratorFailure counts one failed call to the named collaborator.
func (m *Metrics) CollaboratorFailure(name string) {
	if m == nil {
		return
	}
	m.collaboratorFailures.WithLabelValues(name).Inc()
}

// LLMDuration records one completion round trip.
func (m *Metrics) LLMDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(d.Seconds())
}

// Serve exposes /metrics and /healthz on addr in the background.
func (m *Metrics) Serve(addr string, logger *zap.Logger) {
	if m == nil || addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	m.server = &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the metrics server if one was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
