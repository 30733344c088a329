// Пакет config — загрузка и валидация конфигурации File Service
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации File Service.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория хранения (blob-ы, база метаданных, журнал)
	DataDir string
	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Интервал запуска фоновой очистки
	JanitorInterval time.Duration
	// Grace-период: blob-ы моложе этого возраста очистка не трогает
	JanitorGrace time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Путь к TLS сертификату (опционально, вместе с TLSKey)
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// URL JWKS endpoint вышестоящего API (опционально; включает auth)
	JWKSUrl string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACert string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
}

// BlobDir возвращает путь к директории blob-хранилища.
func (c *Config) BlobDir() string {
	return filepath.Join(c.DataDir, "blobs")
}

// WALDir возвращает путь к директории журнала операций.
func (c *Config) WALDir() string {
	return filepath.Join(c.DataDir, "wal")
}

// DBPath возвращает путь к файлу базы метаданных.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "metadata.db")
}

// AuthEnabled сообщает, включена ли JWT-аутентификация.
func (c *Config) AuthEnabled() bool {
	return c.JWKSUrl != ""
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// FS_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("FS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FS_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("FS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// FS_DATA_DIR — обязательный, корневая директория хранения
	cfg.DataDir, err = getEnvRequired("FS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// FS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GiB)
	maxFileSize, err := getEnvInt64("FS_MAX_FILE_SIZE", 1<<30)
	if err != nil {
		return nil, fmt.Errorf("FS_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("FS_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// FS_JANITOR_INTERVAL — интервал фоновой очистки (по умолчанию 1h)
	cfg.JanitorInterval, err = getEnvDuration("FS_JANITOR_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FS_JANITOR_INTERVAL: %w", err)
	}

	// FS_JANITOR_GRACE — grace-период очистки (по умолчанию 10m)
	cfg.JanitorGrace, err = getEnvDuration("FS_JANITOR_GRACE", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_JANITOR_GRACE: %w", err)
	}

	// FS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// FS_TLS_CERT / FS_TLS_KEY — опциональная пара
	cfg.TLSCert = getEnvDefault("FS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("FS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("FS_TLS_CERT и FS_TLS_KEY должны быть заданы вместе")
	}

	// FS_JWKS_URL — опциональный; непустое значение включает auth
	cfg.JWKSUrl = getEnvDefault("FS_JWKS_URL", "")
	cfg.JWKSCACert = getEnvDefault("FS_JWKS_CA_CERT", "")

	// FS_JWT_LEEWAY — допуск времени при проверке JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("FS_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_JWT_LEEWAY: %w", err)
	}

	// FS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FS_LOG_LEVEL: %w", err)
	}

	// FS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
