// Пакет blobstore — операции с физическими blob-файлами на диске.
// Один blob на идентификатор, имя файла детерминированно выводится
// из file_id. Запись — streaming с подсчётом SHA-256 на лету
// и атомарным переименованием, чтобы под финальным путём никогда
// не оказался усечённый файл.
package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/filesharingplatform/file-service/internal/checksum"
)

// blobSuffix — расширение blob-файлов на диске.
const blobSuffix = ".blob"

// BlobStore — управление blob-файлами в корневой директории.
type BlobStore struct {
	// rootDir — директория хранения blob-файлов (FS_DATA_DIR/blobs)
	rootDir string
}

// WriteResult — результат записи blob на диск.
type WriteResult struct {
	// StoragePath — относительный путь blob в rootDir
	StoragePath string
	// Size — размер записанных данных в байтах
	Size int64
	// Hash — SHA-256 hex-дайджест записанного содержимого
	Hash string
}

// New создаёт BlobStore и идемпотентно создаёт корневую директорию.
// Возвращает ошибку, если директория недоступна для записи.
func New(rootDir string) (*BlobStore, error) {
	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию blob-хранилища %s: %w", rootDir, err)
	}

	// Проверяем доступность на запись через temp файл
	probe := filepath.Join(rootDir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория blob-хранилища %s недоступна для записи: %w", rootDir, err)
	}
	os.Remove(probe)

	return &BlobStore{rootDir: rootDir}, nil
}

// StoragePathFor возвращает относительный путь blob для идентификатора.
// Путь детерминирован: {file_id}.blob.
func StoragePathFor(fileID string) string {
	return fileID + blobSuffix
}

// Write записывает данные из reader под путь, выведенный из fileID,
// с подсчётом SHA-256 на лету.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется, частичной записи под финальным
// путём не остаётся.
func (bs *BlobStore) Write(fileID string, reader io.Reader) (*WriteResult, error) {
	storagePath := StoragePathFor(fileID)
	fullPath := filepath.Join(bs.rootDir, storagePath)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := checksum.NewHasher()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &WriteResult{
		StoragePath: storagePath,
		Size:        size,
		Hash:        checksum.Encode(hasher),
	}, nil
}

// Open открывает blob для чтения и возвращает *os.File.
// Вызывающий код обязан закрыть файл.
// Если blob отсутствует, возвращается ошибка, для которой
// os.IsNotExist(err) == true (через errors.Is при обёртке).
func (bs *BlobStore) Open(storagePath string) (*os.File, error) {
	fullPath := filepath.Join(bs.rootDir, storagePath)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob не найден: %s: %w", storagePath, err)
		}
		return nil, fmt.Errorf("ошибка открытия blob %s: %w", storagePath, err)
	}

	return f, nil
}

// Delete удаляет blob с диска.
// Возвращает nil, если blob уже не существует: повторное удаление
// и гонка delete/delete не должны приводить к ошибке на этом уровне.
func (bs *BlobStore) Delete(storagePath string) error {
	fullPath := filepath.Join(bs.rootDir, storagePath)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления blob %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование blob на диске.
func (bs *BlobStore) Exists(storagePath string) bool {
	fullPath := filepath.Join(bs.rootDir, storagePath)
	_, err := os.Stat(fullPath)
	return err == nil
}

// BlobInfo — сведения об одном blob-файле, найденном при сканировании.
type BlobInfo struct {
	// FileID — идентификатор, восстановленный из имени файла
	FileID string
	// StoragePath — относительный путь blob в rootDir
	StoragePath string
	// Size — размер blob в байтах
	Size int64
	// ModTime — время последней модификации (Unix-время в секундах)
	ModTime int64
}

// Scan возвращает все blob-файлы в корневой директории.
// Используется janitor-ом для поиска осиротевших blob-ов.
// Temp файлы (*.tmp) и служебные файлы пропускаются.
func (bs *BlobStore) Scan() ([]BlobInfo, error) {
	entries, err := os.ReadDir(bs.rootDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", bs.rootDir, err)
	}

	var result []BlobInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), blobSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		result = append(result, BlobInfo{
			FileID:      strings.TrimSuffix(entry.Name(), blobSuffix),
			StoragePath: entry.Name(),
			Size:        info.Size(),
			ModTime:     info.ModTime().Unix(),
		})
	}

	return result, nil
}

// RootDir возвращает путь к корневой директории blob-хранилища.
func (bs *BlobStore) RootDir() string {
	return bs.rootDir
}
