// metrics.go — Prometheus HTTP-метрики File Service.
// Регистрирует метрики: fs_http_requests_total, fs_http_request_duration_seconds.
// Бизнес-метрики (fs_operations_total, fs_files_active) обновляются
// из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fs_http_requests_total",
			Help: "Общее количество HTTP-запросов к File Service",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fs_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к File Service в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// OperationsTotal — общее количество файловых операций.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fs_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)

	// FilesActive — текущее количество активных (не удалённых) записей.
	FilesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fs_files_active",
			Help: "Текущее количество активных файлов в хранилище",
		},
	)

	// JanitorRunsTotal — количество запусков фоновой очистки.
	JanitorRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_janitor_runs_total",
		Help: "Общее количество запусков фоновой очистки",
	})

	// JanitorBlobsRemovedTotal — количество удалённых осиротевших blob-ов.
	JanitorBlobsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_janitor_blobs_removed_total",
		Help: "Общее количество осиротевших blob-ов, удалённых фоновой очисткой",
	})
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем идентификатор на {id} против роста кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет сегмент идентификатора на {id}.
// /files/download/a1b2... → /files/download/{id}
func normalizePath(path string) string {
	for _, prefix := range []string{
		"/files/download/",
		"/files/delete/",
		"/files/verify/",
		"/files/exists/",
	} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + "{id}"
		}
	}
	return path
}
