// Пакет model — доменные модели File Service.
// FileRecord — единственная персистентная сущность: одна запись
// на каждый загруженный файл, хранится в таблице file_records.
package model

import (
	"time"
)

// FileRecord — метаданные загруженного файла.
// Запись создаётся один раз при загрузке и после этого не изменяется,
// за исключением мягкого удаления (Deleted → true, UpdatedAt обновляется).
// Строка остаётся в базе после удаления — физически удаляется только blob.
type FileRecord struct {
	// FileID — уникальный идентификатор файла (UUID v4), первичный ключ.
	// Генерируется сервером при загрузке, неизменяем.
	FileID string `gorm:"primaryKey;column:file_id"`

	// OriginalName — имя файла, переданное клиентом при загрузке.
	// Используется только для Content-Disposition, не для адресации.
	OriginalName string `gorm:"column:original_name;not null"`

	// Size — размер содержимого в байтах, фиксируется при загрузке.
	Size int64 `gorm:"column:size;not null"`

	// Hash — hex-представление SHA-256 содержимого на момент загрузки.
	// Никогда не пересчитывается, VerifyIntegrity сравнивает с ним.
	Hash string `gorm:"column:hash;size:64;not null"`

	// StoragePath — путь blob-файла относительно корневой директории
	// blob-хранилища. Внутреннее поле, наружу не отдаётся.
	StoragePath string `gorm:"column:storage_path;not null"`

	// ContentType — MIME-тип, переданный клиентом. Справочное поле.
	ContentType string `gorm:"column:content_type;not null"`

	// UploadedAt — время загрузки (UTC), неизменяемо.
	UploadedAt time.Time `gorm:"column:uploaded_at;not null"`

	// UpdatedAt — время последней мутации записи (UTC).
	// Обновляется при мягком удалении.
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`

	// Deleted — флаг мягкого удаления. false при создании,
	// переключается в true ровно один раз.
	Deleted bool `gorm:"column:deleted;not null;default:false"`
}

// TableName задаёт имя таблицы для GORM.
func (FileRecord) TableName() string {
	return "file_records"
}

// IsActive проверяет, что запись видима для операций чтения.
func (r *FileRecord) IsActive() bool {
	return !r.Deleted
}
