// Пакет metastore — персистентное хранилище метаданных файлов
// на GORM + SQLite (pure-Go драйвер glebarez/sqlite).
//
// Все операции чтения видят только активные записи (deleted = false).
// Мягкое удаление выполняется условным UPDATE (delete-if-active),
// поэтому флаг переключается ровно один раз даже при гонке двух
// параллельных удалений: второй UPDATE не затронет ни одной строки.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/filesharingplatform/file-service/internal/domain/model"
)

var (
	// ErrNotFound — активная запись с указанным идентификатором отсутствует.
	// Возвращается и для никогда не существовавших, и для удалённых записей.
	ErrNotFound = errors.New("запись не найдена")

	// ErrConflict — запись с таким идентификатором уже существует.
	// При UUID v4 идентификаторах практически недостижима, но вставка
	// обязана быть защищена.
	ErrConflict = errors.New("идентификатор уже занят")
)

// MetaStore — хранилище записей FileRecord.
type MetaStore struct {
	db *gorm.DB
}

// Open открывает (или создаёт) базу SQLite по указанному пути
// и выполняет автомиграцию схемы file_records.
func Open(path string) (*MetaStore, error) {
	if path == "" {
		return nil, fmt.Errorf("путь к базе метаданных не задан")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть базу метаданных %s: %w", path, err)
	}

	// SQLite поддерживает только одного писателя
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить соединение с базой: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&model.FileRecord{}); err != nil {
		return nil, fmt.Errorf("ошибка миграции схемы: %w", err)
	}

	return &MetaStore{db: db}, nil
}

// Close закрывает соединение с базой.
func (m *MetaStore) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("не удалось получить соединение с базой: %w", err)
	}
	return sqlDB.Close()
}

// Ping проверяет доступность базы. Используется /health/ready.
func (m *MetaStore) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("не удалось получить соединение с базой: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Insert сохраняет новую запись. Возвращает ErrConflict, если
// запись с таким file_id уже существует (включая удалённые).
func (m *MetaStore) Insert(ctx context.Context, rec *model.FileRecord) error {
	err := m.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return fmt.Errorf("file_id %s: %w", rec.FileID, ErrConflict)
		}
		return fmt.Errorf("ошибка вставки записи %s: %w", rec.FileID, err)
	}
	return nil
}

// FindActive возвращает активную запись по идентификатору.
// Для отсутствующей или удалённой записи — ErrNotFound.
func (m *MetaStore) FindActive(ctx context.Context, fileID string) (*model.FileRecord, error) {
	var rec model.FileRecord
	err := m.db.WithContext(ctx).
		Where("file_id = ? AND deleted = ?", fileID, false).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file_id %s: %w", fileID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения записи %s: %w", fileID, err)
	}
	return &rec, nil
}

// ExistsActive проверяет существование активной записи.
func (m *MetaStore) ExistsActive(ctx context.Context, fileID string) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("file_id = ? AND deleted = ?", fileID, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ошибка проверки записи %s: %w", fileID, err)
	}
	return count > 0, nil
}

// MarkDeleted переключает флаг deleted условным UPDATE-ом.
// Условие deleted = false делает переключение exactly-once:
// повторный вызов (или проигравший гонку конкурент) получает
// RowsAffected = 0 и ErrNotFound.
func (m *MetaStore) MarkDeleted(ctx context.Context, fileID string) error {
	tx := m.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("file_id = ? AND deleted = ?", fileID, false).
		Updates(map[string]any{
			"deleted":    true,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return fmt.Errorf("ошибка удаления записи %s: %w", fileID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("file_id %s: %w", fileID, ErrNotFound)
	}
	return nil
}

// Find возвращает запись по идентификатору независимо от флага deleted.
// Используется janitor-ом: blob считается осиротевшим и когда записи
// нет вовсе, и когда запись уже помечена удалённой.
func (m *MetaStore) Find(ctx context.Context, fileID string) (*model.FileRecord, error) {
	var rec model.FileRecord
	err := m.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file_id %s: %w", fileID, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения записи %s: %w", fileID, err)
	}
	return &rec, nil
}

// CountActive возвращает количество активных записей.
// Используется для gauge-метрики fs_files_active.
func (m *MetaStore) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("deleted = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return count, nil
}

// isUniqueViolation распознаёт нарушение уникальности первичного ключа
// SQLite: драйвер не всегда транслирует его в gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
