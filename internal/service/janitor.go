// janitor.go — фоновая очистка следов частичных сбоев.
//
// Janitor выполняет две задачи:
//  1. Удаляет осиротевшие blob-ы: файл на диске есть, а записи
//     метаданных нет (крэш между записью blob и вставкой записи)
//     или запись уже помечена удалённой (крэш после переключения
//     флага при незавершённом удалении blob).
//  2. Вычищает завершённые записи журнала операций.
//
// Запускается как горутина с периодическим тикером (FS_JANITOR_INTERVAL).
// Свежие blob-ы защищены grace-периодом: между записью blob и вставкой
// записи метаданных есть легитимное окно, в котором blob ещё не имеет
// записи.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/filesharingplatform/file-service/internal/api/middleware"
	"github.com/filesharingplatform/file-service/internal/storage/blobstore"
	"github.com/filesharingplatform/file-service/internal/storage/metastore"
	"github.com/filesharingplatform/file-service/internal/storage/wal"
)

// JanitorResult — результат одного прохода очистки.
type JanitorResult struct {
	// OrphansRemoved — количество удалённых осиротевших blob-ов
	OrphansRemoved int
	// WALPurged — количество вычищенных журнальных записей
	WALPurged int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность прохода
	Duration time.Duration
}

// Janitor — сервис фоновой очистки.
type Janitor struct {
	blobs    *blobstore.BlobStore
	meta     *metastore.MetaStore
	journal  *wal.WAL
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного RunOnce
	cancel context.CancelFunc
}

// NewJanitor создаёт сервис очистки.
func NewJanitor(
	blobs *blobstore.BlobStore,
	meta *metastore.MetaStore,
	journal *wal.WAL,
	interval, grace time.Duration,
	logger *slog.Logger,
) *Janitor {
	return &Janitor{
		blobs:    blobs,
		meta:     meta,
		journal:  journal,
		interval: interval,
		grace:    grace,
		logger:   logger.With(slog.String("component", "janitor")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (j *Janitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	go j.run(runCtx)

	j.logger.Info("Фоновая очистка запущена",
		slog.String("interval", j.interval.String()),
		slog.String("grace", j.grace.String()),
	)
}

// Stop останавливает фоновый процесс.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.logger.Info("Фоновая очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (j *Janitor) run(ctx context.Context) {
	// Первый проход — сразу после старта
	j.RunOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход очистки. Потокобезопасен.
func (j *Janitor) RunOnce(ctx context.Context) JanitorResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	middleware.JanitorRunsTotal.Inc()

	var result JanitorResult

	blobs, err := j.blobs.Scan()
	if err != nil {
		j.logger.Error("Ошибка сканирования blob-хранилища", slog.String("error", err.Error()))
		result.Errors++
	} else {
		cutoff := time.Now().Add(-j.grace).Unix()
		for _, blob := range blobs {
			if blob.ModTime > cutoff {
				// Возможно, загрузка ещё в процессе
				continue
			}

			if j.isOrphan(ctx, blob.FileID) {
				if err := j.blobs.Delete(blob.StoragePath); err != nil {
					j.logger.Warn("Не удалось удалить осиротевший blob",
						slog.String("file_id", blob.FileID),
						slog.String("error", err.Error()),
					)
					result.Errors++
					continue
				}
				result.OrphansRemoved++
				middleware.JanitorBlobsRemovedTotal.Inc()
				j.logger.Warn("Удалён осиротевший blob",
					slog.String("file_id", blob.FileID),
					slog.Int64("size", blob.Size),
				)
			}
		}
	}

	purged, err := j.journal.PurgeCompleted()
	if err != nil {
		j.logger.Error("Ошибка очистки журнала", slog.String("error", err.Error()))
		result.Errors++
	}
	result.WALPurged = purged

	result.Duration = time.Since(start)

	if result.OrphansRemoved > 0 || result.WALPurged > 0 || result.Errors > 0 {
		j.logger.Info("Проход очистки завершён",
			slog.Int("orphans_removed", result.OrphansRemoved),
			slog.Int("wal_purged", result.WALPurged),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}

// isOrphan определяет, осиротел ли blob: записи метаданных нет вовсе
// или она уже помечена удалённой.
func (j *Janitor) isOrphan(ctx context.Context, fileID string) bool {
	rec, err := j.meta.Find(ctx, fileID)
	if err != nil {
		// ErrNotFound — записи нет, blob осиротел.
		// Прочие ошибки базы — blob не трогаем.
		return errors.Is(err, metastore.ErrNotFound)
	}
	return rec.Deleted
}
