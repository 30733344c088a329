// Пакет service — бизнес-логика File Service.
// storage.go — оркестрация upload/download/delete/verify/exists
// поверх blob-хранилища, базы метаданных и журнала операций.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/filesharingplatform/file-service/internal/api/errors"
	"github.com/filesharingplatform/file-service/internal/api/middleware"
	"github.com/filesharingplatform/file-service/internal/checksum"
	"github.com/filesharingplatform/file-service/internal/domain/model"
	"github.com/filesharingplatform/file-service/internal/storage/blobstore"
	"github.com/filesharingplatform/file-service/internal/storage/metastore"
	"github.com/filesharingplatform/file-service/internal/storage/wal"
)

// StorageError — типизированная ошибка сервисного слоя с HTTP-кодом.
type StorageError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — имя файла, переданное клиентом
	OriginalName string
	// ContentType — MIME-тип файла
	ContentType string
	// Size — размер файла (из Content-Length multipart part)
	Size int64
}

// UploadResult — результат загрузки файла.
type UploadResult struct {
	FileID string
	Name   string
	Size   int64
	Hash   string
}

// VerifyResult — результат проверки целостности.
type VerifyResult struct {
	FileID       string
	OriginalName string
	Verified     bool
	Message      string
}

// StorageService — единственный компонент с бизнес-правилами.
// Координирует порядок blob-сначала-метаданные-потом при загрузке
// и blob-удаление-до-переключения-флага при удалении.
type StorageService struct {
	blobs       *blobstore.BlobStore
	meta        *metastore.MetaStore
	journal     *wal.WAL
	maxFileSize int64
	logger      *slog.Logger
}

// NewStorageService создаёт сервис хранения.
func NewStorageService(
	blobs *blobstore.BlobStore,
	meta *metastore.MetaStore,
	journal *wal.WAL,
	maxFileSize int64,
	logger *slog.Logger,
) *StorageService {
	return &StorageService{
		blobs:       blobs,
		meta:        meta,
		journal:     journal,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "storage_service")),
	}
}

// Upload загружает файл в хранилище.
//
// Поток:
//  1. Валидация (пустой payload, лимит размера)
//  2. Генерация file_id (UUID v4)
//  3. Журнальная запись pending
//  4. Запись blob (streaming + SHA-256, atomic rename)
//  5. Вставка FileRecord
//  6. Журнальный commit
//
// При ошибке после записи blob выполняется best-effort очистка
// (удаление blob + журнальный rollback); крэш между шагами 4 и 5
// оставляет осиротевший blob, который подберёт janitor.
func (s *StorageService) Upload(ctx context.Context, params UploadParams) (*UploadResult, *StorageError) {
	// 1. Пустой payload отклоняется до любых побочных эффектов
	if params.Size == 0 {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &StorageError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "File is empty",
		}
	}

	if s.maxFileSize > 0 && params.Size > s.maxFileSize {
		return nil, &StorageError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("File size %d exceeds limit %d", params.Size, s.maxFileSize),
		}
	}

	// 2. Генерируем идентификатор (128 бит случайности, коллизии
	// практически исключены; вставка всё равно защищена от конфликта)
	fileID := uuid.New().String()

	// 3. Журнальная запись pending
	entry, err := s.journal.Begin(wal.OpUpload, fileID)
	if err != nil {
		s.logger.Error("Ошибка создания журнальной записи", slog.String("error", err.Error()))
		return nil, &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to journal upload operation",
		}
	}

	var written *blobstore.WriteResult
	rollback := func() {
		if written != nil {
			_ = s.blobs.Delete(written.StoragePath)
		}
		if rbErr := s.journal.Rollback(entry.TransactionID); rbErr != nil {
			s.logger.Error("Ошибка отката журнальной записи",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
	}

	// 4. Записываем blob (hash считается на лету)
	written, err = s.blobs.Write(fileID, params.Reader)
	if err != nil {
		rollback()
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка записи blob",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to write file to storage",
		}
	}

	// Content-Length мог быть неизвестен: пустое тело отклоняем и здесь
	if written.Size == 0 {
		rollback()
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &StorageError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "File is empty",
		}
	}

	// 5. Вставляем запись метаданных
	now := time.Now().UTC()
	rec := &model.FileRecord{
		FileID:       fileID,
		OriginalName: params.OriginalName,
		Size:         written.Size,
		Hash:         written.Hash,
		StoragePath:  written.StoragePath,
		ContentType:  params.ContentType,
		UploadedAt:   now,
		UpdatedAt:    now,
		Deleted:      false,
	}

	if err := s.meta.Insert(ctx, rec); err != nil {
		rollback()
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка вставки записи метаданных",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, metastore.ErrConflict) {
			return nil, &StorageError{
				StatusCode: 500,
				Code:       apierrors.CodeConflict,
				Message:    "File identifier collision",
			}
		}
		return nil, &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to record file metadata",
		}
	}

	// 6. Журнальный commit — данные уже сохранены, commit best effort
	if err := s.journal.Commit(entry.TransactionID); err != nil {
		s.logger.Error("Ошибка коммита журнальной записи (данные сохранены)",
			slog.String("tx_id", entry.TransactionID),
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.FilesActive.Inc()

	s.logger.Info("Файл загружен",
		slog.String("file_id", fileID),
		slog.String("name", params.OriginalName),
		slog.Int64("size", written.Size),
		slog.String("hash", written.Hash),
	)

	return &UploadResult{
		FileID: fileID,
		Name:   params.OriginalName,
		Size:   written.Size,
		Hash:   written.Hash,
	}, nil
}

// Download возвращает открытый blob и запись метаданных активного файла.
// Вызывающий код обязан закрыть файл.
//
// Активная запись без blob на диске — это дрейф хранилищ
// (след частичного сбоя удаления): отдаётся STORAGE_INCONSISTENT,
// а не NOT_FOUND, чтобы оператор отличил её от обычного 404.
func (s *StorageService) Download(ctx context.Context, fileID string) (*os.File, *model.FileRecord, *StorageError) {
	rec, serr := s.findActive(ctx, fileID)
	if serr != nil {
		return nil, nil, serr
	}

	f, err := s.blobs.Open(rec.StoragePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			middleware.OperationsTotal.WithLabelValues("download", "inconsistent").Inc()
			s.logger.Error("Дрейф хранилищ: активная запись без blob",
				slog.String("file_id", fileID),
				slog.String("storage_path", rec.StoragePath),
			)
			return nil, nil, &StorageError{
				StatusCode: 500,
				Code:       apierrors.CodeStorageInconsistent,
				Message:    fmt.Sprintf("File %s has metadata but no stored content", fileID),
			}
		}
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		s.logger.Error("Ошибка открытия blob",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, nil, &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to read file from storage",
		}
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Debug("Файл отдан",
		slog.String("file_id", fileID),
		slog.String("name", rec.OriginalName),
		slog.Int64("size", rec.Size),
	)

	return f, rec, nil
}

// Delete удаляет файл: физически убирает blob и мягко удаляет запись.
//
// Порядок: lookup → удаление blob → условный UPDATE deleted-флага.
// Уже отсутствующий blob не прерывает операцию (дрейф логируется
// предупреждением). Переключение флага exactly-once обеспечивает
// metastore.MarkDeleted: проигравший гонку конкурент получает 404.
func (s *StorageService) Delete(ctx context.Context, fileID string) *StorageError {
	rec, serr := s.findActive(ctx, fileID)
	if serr != nil {
		return serr
	}

	entry, err := s.journal.Begin(wal.OpDelete, fileID)
	if err != nil {
		s.logger.Error("Ошибка создания журнальной записи", slog.String("error", err.Error()))
		return &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to journal delete operation",
		}
	}

	if !s.blobs.Exists(rec.StoragePath) {
		s.logger.Warn("Blob уже отсутствует при удалении (дрейф хранилищ)",
			slog.String("file_id", fileID),
			slog.String("storage_path", rec.StoragePath),
		)
	}

	if err := s.blobs.Delete(rec.StoragePath); err != nil {
		if rbErr := s.journal.Rollback(entry.TransactionID); rbErr != nil {
			s.logger.Error("Ошибка отката журнальной записи",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка удаления blob",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to delete file content",
		}
	}

	if err := s.meta.MarkDeleted(ctx, fileID); err != nil {
		if rbErr := s.journal.Rollback(entry.TransactionID); rbErr != nil {
			s.logger.Error("Ошибка отката журнальной записи",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
		if errors.Is(err, metastore.ErrNotFound) {
			// Конкурент успел переключить флаг первым
			middleware.OperationsTotal.WithLabelValues("delete", "not_found").Inc()
			return &StorageError{
				StatusCode: 404,
				Code:       apierrors.CodeNotFound,
				Message:    fmt.Sprintf("File not found: %s", fileID),
			}
		}
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка мягкого удаления записи",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to mark file as deleted",
		}
	}

	if err := s.journal.Commit(entry.TransactionID); err != nil {
		s.logger.Error("Ошибка коммита журнальной записи (удаление выполнено)",
			slog.String("tx_id", entry.TransactionID),
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	middleware.FilesActive.Dec()

	s.logger.Info("Файл удалён",
		slog.String("file_id", fileID),
		slog.String("name", rec.OriginalName),
	)

	return nil
}

// Verify сравнивает переданный дайджест с зафиксированным при загрузке.
// Blob с диска не перечитывается: проверка доверяет сохранённому hash,
// поэтому порчу данных на диске после загрузки она не обнаруживает.
func (s *StorageService) Verify(ctx context.Context, fileID, expectedHash string) (*VerifyResult, *StorageError) {
	if expectedHash == "" {
		return nil, &StorageError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "expectedHash is required",
		}
	}

	rec, serr := s.findActive(ctx, fileID)
	if serr != nil {
		return nil, serr
	}

	verified := checksum.Equal(rec.Hash, expectedHash)

	result := "failed"
	message := "File integrity check failed"
	if verified {
		result = "success"
		message = "File integrity verified"
	}
	middleware.OperationsTotal.WithLabelValues("verify", result).Inc()

	s.logger.Info("Проверка целостности",
		slog.String("file_id", fileID),
		slog.Bool("verified", verified),
	)

	return &VerifyResult{
		FileID:       fileID,
		OriginalName: rec.OriginalName,
		Verified:     verified,
		Message:      message,
	}, nil
}

// Exists проверяет наличие активной записи. Присутствие blob на диске
// не проверяется.
func (s *StorageService) Exists(ctx context.Context, fileID string) (bool, *StorageError) {
	exists, err := s.meta.ExistsActive(ctx, fileID)
	if err != nil {
		s.logger.Error("Ошибка проверки существования",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return false, &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to check file existence",
		}
	}
	return exists, nil
}

// findActive возвращает активную запись или типизированную ошибку.
func (s *StorageService) findActive(ctx context.Context, fileID string) (*model.FileRecord, *StorageError) {
	rec, err := s.meta.FindActive(ctx, fileID)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return nil, &StorageError{
				StatusCode: 404,
				Code:       apierrors.CodeNotFound,
				Message:    fmt.Sprintf("File not found: %s", fileID),
			}
		}
		s.logger.Error("Ошибка чтения метаданных",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, &StorageError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageUnavailable,
			Message:    "Failed to read file metadata",
		}
	}
	return rec, nil
}
