// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/filesharingplatform/file-service/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// DBPinger — интерфейс для проверки доступности базы метаданных.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler реализует /health/live и /health/ready.
type HealthHandler struct {
	version string
	// blobDir — путь к директории blob-хранилища (для проверки FS)
	blobDir string
	// db — база метаданных для ping
	db DBPinger
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(blobDir string, db DBPinger) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		blobDir: blobDir,
		db:      db,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "file-service",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: запись в blob-директорию, доступность базы метаданных.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	dbCheck := h.checkDatabase(r.Context())
	if dbCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]any{
			"filesystem": fsCheck,
			"database":   dbCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFilesystem проверяет доступность blob-директории на запись.
func (h *HealthHandler) checkFilesystem() map[string]string {
	if h.blobDir == "" {
		return map[string]string{"status": statusFail, "error": "директория не задана"}
	}

	probe := filepath.Join(h.blobDir, ".ready_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return map[string]string{"status": statusFail, "error": err.Error()}
	}
	os.Remove(probe)

	return map[string]string{"status": "ok"}
}

// checkDatabase проверяет доступность базы метаданных.
func (h *HealthHandler) checkDatabase(ctx context.Context) map[string]string {
	if h.db == nil {
		return map[string]string{"status": statusFail, "error": "база не инициализирована"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.db.Ping(pingCtx); err != nil {
		return map[string]string{"status": statusFail, "error": err.Error()}
	}

	return map[string]string{"status": "ok"}
}
