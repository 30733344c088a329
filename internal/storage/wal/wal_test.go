package wal

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

// newTestWAL создаёт журнал во временной директории.
func newTestWAL(t *testing.T) *WAL {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(filepath.Join(t.TempDir(), "wal"), logger)
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}
	return w
}

// TestBeginCommit проверяет жизненный цикл pending → committed.
func TestBeginCommit(t *testing.T) {
	w := newTestWAL(t)

	fileID := uuid.New().String()
	entry, err := w.Begin(OpUpload, fileID)
	if err != nil {
		t.Fatalf("ошибка Begin: %v", err)
	}

	if entry.Status != StatusPending {
		t.Errorf("статус: ожидалось %s, получено %s", StatusPending, entry.Status)
	}
	if entry.FileID != fileID {
		t.Errorf("file_id: ожидалось %s, получено %s", fileID, entry.FileID)
	}

	// Журнальный файл существует на диске
	if _, err := os.Stat(filepath.Join(w.Dir(), fileName(entry.TransactionID))); err != nil {
		t.Fatalf("журнальный файл не создан: %v", err)
	}

	if err := w.Commit(entry.TransactionID); err != nil {
		t.Fatalf("ошибка Commit: %v", err)
	}

	// Повторный commit завершённой записи — ошибка
	if err := w.Commit(entry.TransactionID); err == nil {
		t.Error("повторный commit должен вернуть ошибку")
	}
}

// TestRollback проверяет откат pending-записи.
func TestRollback(t *testing.T) {
	w := newTestWAL(t)

	entry, err := w.Begin(OpDelete, uuid.New().String())
	if err != nil {
		t.Fatalf("ошибка Begin: %v", err)
	}

	if err := w.Rollback(entry.TransactionID); err != nil {
		t.Fatalf("ошибка Rollback: %v", err)
	}

	if err := w.Rollback(entry.TransactionID); err == nil {
		t.Error("повторный rollback должен вернуть ошибку")
	}
}

// TestRecoverPending проверяет восстановление незавершённых операций.
func TestRecoverPending(t *testing.T) {
	w := newTestWAL(t)

	committed, err := w.Begin(OpUpload, uuid.New().String())
	if err != nil {
		t.Fatalf("ошибка Begin: %v", err)
	}
	if err := w.Commit(committed.TransactionID); err != nil {
		t.Fatalf("ошибка Commit: %v", err)
	}

	stuck, err := w.Begin(OpDelete, uuid.New().String())
	if err != nil {
		t.Fatalf("ошибка Begin: %v", err)
	}

	pending, err := w.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка RecoverPending: %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("ожидалась 1 pending запись, получено %d", len(pending))
	}
	if pending[0].TransactionID != stuck.TransactionID {
		t.Errorf("восстановлена не та запись: %s", pending[0].TransactionID)
	}
	if pending[0].Operation != OpDelete {
		t.Errorf("операция: ожидалось %s, получено %s", OpDelete, pending[0].Operation)
	}
}

// TestPurgeCompleted проверяет очистку завершённых записей.
func TestPurgeCompleted(t *testing.T) {
	w := newTestWAL(t)

	first, _ := w.Begin(OpUpload, uuid.New().String())
	second, _ := w.Begin(OpUpload, uuid.New().String())
	third, _ := w.Begin(OpDelete, uuid.New().String())

	if err := w.Commit(first.TransactionID); err != nil {
		t.Fatalf("ошибка Commit: %v", err)
	}
	if err := w.Rollback(second.TransactionID); err != nil {
		t.Fatalf("ошибка Rollback: %v", err)
	}
	// third остаётся pending

	purged, err := w.PurgeCompleted()
	if err != nil {
		t.Fatalf("ошибка PurgeCompleted: %v", err)
	}
	if purged != 2 {
		t.Errorf("ожидалось 2 вычищенные записи, получено %d", purged)
	}

	// Pending запись должна уцелеть
	pending, err := w.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка RecoverPending: %v", err)
	}
	if len(pending) != 1 || pending[0].TransactionID != third.TransactionID {
		t.Errorf("pending запись не должна вычищаться: %v", pending)
	}
}
