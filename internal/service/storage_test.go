package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/filesharingplatform/file-service/internal/storage/blobstore"
	"github.com/filesharingplatform/file-service/internal/storage/metastore"
	"github.com/filesharingplatform/file-service/internal/storage/wal"
)

// testEnv — собранный сервис поверх временной директории.
type testEnv struct {
	svc   *StorageService
	blobs *blobstore.BlobStore
	meta  *metastore.MetaStore
}

// newTestService собирает StorageService со всеми реальными зависимостями
// во временной директории теста.
func newTestService(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blobs, err := blobstore.New(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("ошибка создания blob-хранилища: %v", err)
	}

	meta, err := metastore.Open(filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatalf("ошибка открытия базы метаданных: %v", err)
	}
	t.Cleanup(func() { meta.Close() })

	journal, err := wal.New(filepath.Join(dir, "wal"), logger)
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}

	svc := NewStorageService(blobs, meta, journal, 1<<20, logger)
	return &testEnv{svc: svc, blobs: blobs, meta: meta}
}

// upload — вспомогательная загрузка с fatal при ошибке.
func (e *testEnv) upload(t *testing.T, name string, payload []byte) *UploadResult {
	t.Helper()

	res, serr := e.svc.Upload(context.Background(), UploadParams{
		Reader:       bytes.NewReader(payload),
		OriginalName: name,
		ContentType:  "application/octet-stream",
		Size:         int64(len(payload)),
	})
	if serr != nil {
		t.Fatalf("ошибка загрузки: %v", serr)
	}
	return res
}

// TestUploadDownload — загруженный файл скачивается байт-в-байт,
// hash совпадает с независимо посчитанным SHA-256.
func TestUploadDownload(t *testing.T) {
	env := newTestService(t)
	payload := []byte("содержимое тестового файла")

	res := env.upload(t, "report.pdf", payload)

	if res.FileID == "" {
		t.Fatal("пустой file_id")
	}
	if res.Size != int64(len(payload)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(payload), res.Size)
	}

	sum := sha256.Sum256(payload)
	if res.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("hash расходится с независимым SHA-256: %s", res.Hash)
	}

	f, rec, serr := env.svc.Download(context.Background(), res.FileID)
	if serr != nil {
		t.Fatalf("ошибка скачивания: %v", serr)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("скачанное содержимое не совпадает с загруженным")
	}
	if rec.OriginalName != "report.pdf" {
		t.Errorf("имя: ожидалось report.pdf, получено %s", rec.OriginalName)
	}
}

// TestUploadABC — сквозной сценарий с известным дайджестом.
func TestUploadABC(t *testing.T) {
	env := newTestService(t)

	res := env.upload(t, "abc.txt", []byte("abc"))

	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if res.Hash != want {
		t.Errorf("hash для 'abc': ожидалось %s, получено %s", want, res.Hash)
	}

	vr, serr := env.svc.Verify(context.Background(), res.FileID, want)
	if serr != nil {
		t.Fatalf("ошибка проверки: %v", serr)
	}
	if !vr.Verified {
		t.Error("проверка эталонного дайджеста должна пройти")
	}
	if vr.Message != "File integrity verified" {
		t.Errorf("сообщение: %s", vr.Message)
	}
}

// TestUploadEmpty — пустой payload отклоняется без следов в хранилище.
func TestUploadEmpty(t *testing.T) {
	env := newTestService(t)

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		Reader:       bytes.NewReader(nil),
		OriginalName: "empty.txt",
		Size:         0,
	})
	if serr == nil {
		t.Fatal("пустая загрузка должна отклоняться")
	}
	if serr.StatusCode != 400 {
		t.Errorf("статус: ожидалось 400, получено %d", serr.StatusCode)
	}
	if serr.Code != "VALIDATION_ERROR" {
		t.Errorf("код: ожидалось VALIDATION_ERROR, получено %s", serr.Code)
	}

	blobs, err := env.blobs.Scan()
	if err != nil {
		t.Fatalf("ошибка сканирования: %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("blob-хранилище должно быть пустым, найдено %d blob-ов", len(blobs))
	}
}

// TestUploadEmptyUnknownSize — пустое тело с неизвестным Content-Length
// отклоняется после записи, blob вычищается откатом.
func TestUploadEmptyUnknownSize(t *testing.T) {
	env := newTestService(t)

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		Reader:       strings.NewReader(""),
		OriginalName: "empty.txt",
		Size:         -1,
	})
	if serr == nil {
		t.Fatal("пустая загрузка должна отклоняться")
	}
	if serr.StatusCode != 400 {
		t.Errorf("статус: ожидалось 400, получено %d", serr.StatusCode)
	}

	blobs, err := env.blobs.Scan()
	if err != nil {
		t.Fatalf("ошибка сканирования: %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("откат должен вычистить blob, найдено %d", len(blobs))
	}
}

// TestUploadTooLarge — превышение лимита даёт 413.
func TestUploadTooLarge(t *testing.T) {
	env := newTestService(t)

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		Reader:       bytes.NewReader([]byte("x")),
		OriginalName: "big.bin",
		Size:         2 << 20,
	})
	if serr == nil {
		t.Fatal("превышение лимита должно отклоняться")
	}
	if serr.StatusCode != 413 {
		t.Errorf("статус: ожидалось 413, получено %d", serr.StatusCode)
	}
}

// TestExistsLifecycle — exists отражает жизненный цикл файла.
func TestExistsLifecycle(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	exists, serr := env.svc.Exists(ctx, "00000000-0000-0000-0000-000000000000")
	if serr != nil {
		t.Fatalf("ошибка exists: %v", serr)
	}
	if exists {
		t.Error("несуществующий файл не должен находиться")
	}

	res := env.upload(t, "life.txt", []byte("данные"))

	exists, serr = env.svc.Exists(ctx, res.FileID)
	if serr != nil {
		t.Fatalf("ошибка exists: %v", serr)
	}
	if !exists {
		t.Error("загруженный файл должен находиться")
	}

	if serr := env.svc.Delete(ctx, res.FileID); serr != nil {
		t.Fatalf("ошибка удаления: %v", serr)
	}

	exists, serr = env.svc.Exists(ctx, res.FileID)
	if serr != nil {
		t.Fatalf("ошибка exists: %v", serr)
	}
	if exists {
		t.Error("удалённый файл не должен находиться")
	}
}

// TestDelete — удаление убирает blob и мягко помечает запись.
func TestDelete(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res := env.upload(t, "doomed.txt", []byte("обречено"))
	storagePath := blobstore.StoragePathFor(res.FileID)

	if serr := env.svc.Delete(ctx, res.FileID); serr != nil {
		t.Fatalf("ошибка удаления: %v", serr)
	}

	// Blob физически удалён
	if env.blobs.Exists(storagePath) {
		t.Error("blob должен быть удалён с диска")
	}

	// Запись осталась в базе с флагом deleted
	rec, err := env.meta.Find(ctx, res.FileID)
	if err != nil {
		t.Fatalf("запись метаданных должна сохраниться: %v", err)
	}
	if !rec.Deleted {
		t.Error("запись должна быть помечена удалённой")
	}
	if rec.Hash != res.Hash {
		t.Error("hash в записи не должен меняться при удалении")
	}

	// Скачивание удалённого файла — 404
	_, _, serr := env.svc.Download(ctx, res.FileID)
	if serr == nil || serr.StatusCode != 404 {
		t.Errorf("скачивание удалённого файла: ожидалось 404, получено %v", serr)
	}
}

// TestDeleteTwice — повторное удаление возвращает 404.
func TestDeleteTwice(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res := env.upload(t, "once.txt", []byte("один раз"))

	if serr := env.svc.Delete(ctx, res.FileID); serr != nil {
		t.Fatalf("первое удаление должно пройти: %v", serr)
	}

	serr := env.svc.Delete(ctx, res.FileID)
	if serr == nil {
		t.Fatal("повторное удаление должно вернуть ошибку")
	}
	if serr.StatusCode != 404 {
		t.Errorf("статус: ожидалось 404, получено %d", serr.StatusCode)
	}
	if serr.Code != "NOT_FOUND" {
		t.Errorf("код: ожидалось NOT_FOUND, получено %s", serr.Code)
	}
}

// TestDeleteUnknown — удаление несуществующего файла — 404.
func TestDeleteUnknown(t *testing.T) {
	env := newTestService(t)

	serr := env.svc.Delete(context.Background(), "ffffffff-ffff-ffff-ffff-ffffffffffff")
	if serr == nil || serr.StatusCode != 404 {
		t.Errorf("ожидалось 404, получено %v", serr)
	}
}

// TestVerify — корректный и ошибочный дайджест.
func TestVerify(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res := env.upload(t, "check.txt", []byte("проверяемые данные"))

	vr, serr := env.svc.Verify(ctx, res.FileID, res.Hash)
	if serr != nil {
		t.Fatalf("ошибка проверки: %v", serr)
	}
	if !vr.Verified {
		t.Error("проверка правильного hash должна пройти")
	}

	// Регистр hex не должен влиять на результат
	vr, serr = env.svc.Verify(ctx, res.FileID, strings.ToUpper(res.Hash))
	if serr != nil {
		t.Fatalf("ошибка проверки: %v", serr)
	}
	if !vr.Verified {
		t.Error("сравнение hash должно быть регистронезависимым")
	}

	vr, serr = env.svc.Verify(ctx, res.FileID, strings.Repeat("0", 64))
	if serr != nil {
		t.Fatalf("ошибка проверки: %v", serr)
	}
	if vr.Verified {
		t.Error("проверка чужого hash не должна пройти")
	}
	if vr.Message != "File integrity check failed" {
		t.Errorf("сообщение: %s", vr.Message)
	}
}

// TestVerifyValidation — пустой expectedHash и неизвестный файл.
func TestVerifyValidation(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res := env.upload(t, "v.txt", []byte("x"))

	_, serr := env.svc.Verify(ctx, res.FileID, "")
	if serr == nil || serr.StatusCode != 400 {
		t.Errorf("пустой expectedHash: ожидалось 400, получено %v", serr)
	}

	_, serr = env.svc.Verify(ctx, "ffffffff-ffff-ffff-ffff-ffffffffffff", res.Hash)
	if serr == nil || serr.StatusCode != 404 {
		t.Errorf("неизвестный файл: ожидалось 404, получено %v", serr)
	}
}

// TestDownloadMissingBlob — активная запись без blob на диске
// трактуется как дрейф хранилищ, а не как 404.
func TestDownloadMissingBlob(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res := env.upload(t, "drift.txt", []byte("дрейф"))

	// Имитируем частичный сбой: blob пропал, запись активна
	if err := env.blobs.Delete(blobstore.StoragePathFor(res.FileID)); err != nil {
		t.Fatalf("ошибка удаления blob: %v", err)
	}

	_, _, serr := env.svc.Download(ctx, res.FileID)
	if serr == nil {
		t.Fatal("ожидалась ошибка")
	}
	if serr.StatusCode != 500 {
		t.Errorf("статус: ожидалось 500, получено %d", serr.StatusCode)
	}
	if serr.Code != "STORAGE_INCONSISTENT" {
		t.Errorf("код: ожидалось STORAGE_INCONSISTENT, получено %s", serr.Code)
	}
}

// TestDeleteMissingBlob — отсутствие blob не мешает мягкому удалению.
func TestDeleteMissingBlob(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res := env.upload(t, "gone.txt", []byte("уже нет"))
	if err := env.blobs.Delete(blobstore.StoragePathFor(res.FileID)); err != nil {
		t.Fatalf("ошибка удаления blob: %v", err)
	}

	if serr := env.svc.Delete(ctx, res.FileID); serr != nil {
		t.Fatalf("удаление при отсутствующем blob должно пройти: %v", serr)
	}

	exists, serr := env.svc.Exists(ctx, res.FileID)
	if serr != nil {
		t.Fatalf("ошибка exists: %v", serr)
	}
	if exists {
		t.Error("файл должен считаться удалённым")
	}
}

// TestVerifyTrustsStoredHash — проверка доверяет зафиксированному hash
// и не перечитывает blob с диска.
func TestVerifyTrustsStoredHash(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res := env.upload(t, "trust.txt", []byte("оригинал"))

	// Порча blob после загрузки не видна проверке
	if err := env.blobs.Delete(blobstore.StoragePathFor(res.FileID)); err != nil {
		t.Fatalf("ошибка удаления blob: %v", err)
	}

	vr, serr := env.svc.Verify(ctx, res.FileID, res.Hash)
	if serr != nil {
		t.Fatalf("ошибка проверки: %v", serr)
	}
	if !vr.Verified {
		t.Error("проверка сверяет только зафиксированный hash")
	}
}
