package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadDefaults проверяет значения по умолчанию при минимальной
// конфигурации.
func TestLoadDefaults(t *testing.T) {
	t.Setenv("FS_DATA_DIR", "/var/lib/file-service")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.MaxFileSize != 1<<30 {
		t.Errorf("MaxFileSize: ожидалось %d, получено %d", int64(1<<30), cfg.MaxFileSize)
	}
	if cfg.JanitorInterval != time.Hour {
		t.Errorf("JanitorInterval: ожидалось 1h, получено %s", cfg.JanitorInterval)
	}
	if cfg.JanitorGrace != 10*time.Minute {
		t.Errorf("JanitorGrace: ожидалось 10m, получено %s", cfg.JanitorGrace)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout: ожидалось 5s, получено %s", cfg.ShutdownTimeout)
	}
	if cfg.JWTLeeway != 30*time.Second {
		t.Errorf("JWTLeeway: ожидалось 30s, получено %s", cfg.JWTLeeway)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось info, получено %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось json, получено %s", cfg.LogFormat)
	}
	if cfg.AuthEnabled() {
		t.Error("auth не должен включаться без FS_JWKS_URL")
	}
}

// TestLoadFull проверяет разбор всех переменных.
func TestLoadFull(t *testing.T) {
	t.Setenv("FS_PORT", "9090")
	t.Setenv("FS_DATA_DIR", "/data")
	t.Setenv("FS_MAX_FILE_SIZE", "1048576")
	t.Setenv("FS_JANITOR_INTERVAL", "30m")
	t.Setenv("FS_JANITOR_GRACE", "5m")
	t.Setenv("FS_SHUTDOWN_TIMEOUT", "10s")
	t.Setenv("FS_TLS_CERT", "/certs/tls.crt")
	t.Setenv("FS_TLS_KEY", "/certs/tls.key")
	t.Setenv("FS_JWKS_URL", "https://auth.example.com/.well-known/jwks.json")
	t.Setenv("FS_JWT_LEEWAY", "1m")
	t.Setenv("FS_LOG_LEVEL", "debug")
	t.Setenv("FS_LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port: %d", cfg.Port)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize: %d", cfg.MaxFileSize)
	}
	if cfg.JanitorInterval != 30*time.Minute {
		t.Errorf("JanitorInterval: %s", cfg.JanitorInterval)
	}
	if cfg.TLSCert != "/certs/tls.crt" || cfg.TLSKey != "/certs/tls.key" {
		t.Error("TLS пара разобрана неверно")
	}
	if !cfg.AuthEnabled() {
		t.Error("auth должен включаться при заданном FS_JWKS_URL")
	}
	if cfg.JWTLeeway != time.Minute {
		t.Errorf("JWTLeeway: %s", cfg.JWTLeeway)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: %s", cfg.LogLevel)
	}
}

// TestLoadErrors — табличная проверка ошибок валидации.
func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "нет FS_DATA_DIR",
			env:  map[string]string{"FS_DATA_DIR": ""},
		},
		{
			name: "порт вне диапазона",
			env: map[string]string{
				"FS_DATA_DIR": "/data",
				"FS_PORT":     "70000",
			},
		},
		{
			name: "порт не число",
			env: map[string]string{
				"FS_DATA_DIR": "/data",
				"FS_PORT":     "abc",
			},
		},
		{
			name: "отрицательный лимит размера",
			env: map[string]string{
				"FS_DATA_DIR":      "/data",
				"FS_MAX_FILE_SIZE": "-1",
			},
		},
		{
			name: "некорректная длительность",
			env: map[string]string{
				"FS_DATA_DIR":         "/data",
				"FS_JANITOR_INTERVAL": "sometimes",
			},
		},
		{
			name: "TLS сертификат без ключа",
			env: map[string]string{
				"FS_DATA_DIR": "/data",
				"FS_TLS_CERT": "/certs/tls.crt",
			},
		},
		{
			name: "недопустимый уровень логирования",
			env: map[string]string{
				"FS_DATA_DIR":  "/data",
				"FS_LOG_LEVEL": "verbose",
			},
		},
		{
			name: "недопустимый формат логов",
			env: map[string]string{
				"FS_DATA_DIR":   "/data",
				"FS_LOG_FORMAT": "xml",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("ожидалась ошибка валидации")
			}
		})
	}
}

// TestDerivedPaths проверяет производные пути хранилища.
func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/srv/files"}

	if cfg.BlobDir() != filepath.Join("/srv/files", "blobs") {
		t.Errorf("BlobDir: %s", cfg.BlobDir())
	}
	if cfg.WALDir() != filepath.Join("/srv/files", "wal") {
		t.Errorf("WALDir: %s", cfg.WALDir())
	}
	if cfg.DBPath() != filepath.Join("/srv/files", "metadata.db") {
		t.Errorf("DBPath: %s", cfg.DBPath())
	}
}
