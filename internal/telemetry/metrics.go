package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка и диспетчера. Регистрируются в default registry,
// сервисы отдают их через promhttp на /metrics.
var (
	// RunsTotal — завершённые запуски потоков по итоговому статусу.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interflow_runs_total",
		Help: "Completed flow runs by final status",
	}, []string{"status"})

	// RunDuration — длительность запусков потоков.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interflow_run_duration_seconds",
		Help:    "Flow run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	// NodeExecutions — выполнения узлов по типу и статусу.
	NodeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interflow_node_executions_total",
		Help: "Node executions by kind and status",
	}, []string{"kind", "status"})

	// DispatchAttempts — попытки исходящих вызовов интерфейсов.
	DispatchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interflow_dispatch_attempts_total",
		Help: "Outbound interface call attempts including retries",
	})

	// TokenRefreshes — обновления токенов после 401/403.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interflow_token_refresh_total",
		Help: "Auth token refreshes triggered by 401/403 responses",
	}, []string{"result"})

	// HTTPRequests — запросы к API по шаблону маршрута и статусу.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interflow_http_requests_total",
		Help: "API requests by method, route pattern and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration — длительность обработки запросов к API.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interflow_http_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"method", "route"})
)
