// Точка входа File Service — сервиса хранения файлов платформы обмена.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/filesharingplatform/file-service/internal/api/handlers"
	"github.com/filesharingplatform/file-service/internal/api/middleware"
	"github.com/filesharingplatform/file-service/internal/config"
	"github.com/filesharingplatform/file-service/internal/server"
	"github.com/filesharingplatform/file-service/internal/service"
	"github.com/filesharingplatform/file-service/internal/storage/blobstore"
	"github.com/filesharingplatform/file-service/internal/storage/metastore"
	"github.com/filesharingplatform/file-service/internal/storage/wal"
)

func main() {
	// .env для локальной разработки; в production переменные задаёт оркестратор
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("File Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("auth", cfg.AuthEnabled()),
	)

	// --- Инициализация компонентов ---

	// 1. Журнал операций
	journal, err := wal.New(cfg.WALDir(), logger)
	if err != nil {
		logger.Error("Ошибка инициализации журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Записи pending означают операции, прерванные крэшем:
	// откатываем их и предупреждаем о возможных осиротевших blob-ах
	pending, err := journal.RecoverPending()
	if err != nil {
		logger.Error("Ошибка восстановления журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, entry := range pending {
		if rbErr := journal.Rollback(entry.TransactionID); rbErr != nil {
			logger.Error("Ошибка отката журнальной записи",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
	}
	if len(pending) > 0 {
		logger.Warn("Незавершённые операции откачены, осиротевшие blob-ы подберёт очистка",
			slog.Int("count", len(pending)),
		)
	}

	// 2. Blob-хранилище
	blobs, err := blobstore.New(cfg.BlobDir())
	if err != nil {
		logger.Error("Ошибка инициализации blob-хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. База метаданных
	meta, err := metastore.Open(cfg.DBPath())
	if err != nil {
		logger.Error("Ошибка инициализации базы метаданных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer meta.Close()

	// Инициализируем gauge активных файлов
	if count, err := meta.CountActive(context.Background()); err == nil {
		middleware.FilesActive.Set(float64(count))
	}

	// 4. Сервисный слой
	storageSvc := service.NewStorageService(blobs, meta, journal, cfg.MaxFileSize, logger)

	// 5. Фоновая очистка
	janitor := service.NewJanitor(blobs, meta, journal, cfg.JanitorInterval, cfg.JanitorGrace, logger)
	janitor.Start(context.Background())
	defer janitor.Stop()

	// 6. Опциональная JWT-аутентификация
	var auth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		auth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: 5 * time.Minute,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT auth", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 7. HTTP-сервер
	filesHandler := handlers.NewFilesHandler(storageSvc)
	healthHandler := handlers.NewHealthHandler(cfg.BlobDir(), meta)

	srv := server.New(cfg, logger, filesHandler, healthHandler, auth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
