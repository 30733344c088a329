// Пакет wal — файловый журнал незавершённых операций File Service.
// Каждая операция записи (upload, delete) обрамляется журнальной
// записью: pending до начала, committed или rolled_back после.
// Запись pending, пережившая рестарт, означает возможный дрейф
// между blob-хранилищем и базой метаданных — оператор получает
// об этом сигнал в логах при старте.
package wal

import (
	"time"
)

// Operation — тип операции, фиксируемой в журнале.
type Operation string

const (
	// OpUpload — загрузка нового файла
	OpUpload Operation = "upload"
	// OpDelete — удаление файла (blob + мягкое удаление записи)
	OpDelete Operation = "delete"
)

// Status — состояние журнальной записи.
type Status string

const (
	// StatusPending — операция начата и ещё не завершена
	StatusPending Status = "pending"
	// StatusCommitted — операция успешно завершена
	StatusCommitted Status = "committed"
	// StatusRolledBack — операция отменена
	StatusRolledBack Status = "rolled_back"
)

// Entry — журнальная запись. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор записи (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип операции
	Operation Operation `json:"operation"`

	// Status — текущее состояние
	Status Status `json:"status"`

	// FileID — идентификатор файла, над которым выполняется операция
	FileID string `json:"file_id"`

	// StartedAt — время начала операции (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения (UTC), nil для pending
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// fileName возвращает имя журнального файла для записи.
func fileName(txID string) string {
	return txID + ".wal.json"
}
