// files.go — HTTP handlers файловых операций File Service.
// Health, Upload, Download, Delete, Verify, Exists.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/filesharingplatform/file-service/internal/api/errors"
	"github.com/filesharingplatform/file-service/internal/service"
)

// multipartMemoryLimit — буфер парсинга multipart form в памяти,
// остальное уходит во временные файлы.
const multipartMemoryLimit = 32 << 20 // 32 MB

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	storage *service.StorageService
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(storage *service.StorageService) *FilesHandler {
	return &FilesHandler{storage: storage}
}

// uploadResponse — тело ответа успешной загрузки.
type uploadResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

// verifyRequest — тело запроса проверки целостности.
type verifyRequest struct {
	ExpectedHash string `json:"expectedHash"`
}

// verifyResponse — тело ответа проверки целостности.
type verifyResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	Verified     bool   `json:"verified"`
	Message      string `json:"message"`
}

// Health обрабатывает GET /files/health.
// Возвращает 200 с plain-text телом без проверки зависимостей
// (для зависимостей есть /health/ready).
func (h *FilesHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("File service is running"))
}

// Upload обрабатывает POST /files/upload.
// Multipart form с единственным полем file.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Invalid multipart payload: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Form field 'file' is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, uploadErr := h.storage.Upload(r.Context(), service.UploadParams{
		Reader:       file,
		OriginalName: header.Filename,
		ContentType:  contentType,
		Size:         header.Size,
	})
	if uploadErr != nil {
		apierrors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		ID:      result.FileID,
		Name:    result.Name,
		Size:    result.Size,
		Hash:    result.Hash,
		Message: "File uploaded successfully",
	})
}

// Download обрабатывает GET /files/download/{id}.
// Отдаёт содержимое как attachment с оригинальным именем файла.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	file, rec, serr := h.storage.Download(r.Context(), fileID)
	if serr != nil {
		apierrors.WriteError(w, serr.StatusCode, serr.Code, serr.Message)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		apierrors.StorageUnavailable(w, "Failed to read file from storage")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.OriginalName))
	w.Header().Set("ETag", fmt.Sprintf("%q", rec.Hash))

	// http.ServeContent обрабатывает Range, If-None-Match и Content-Length
	http.ServeContent(w, r, rec.OriginalName, stat.ModTime(), file)
}

// Delete обрабатывает DELETE /files/delete/{id}.
// 204 при успехе, 404 для неизвестного или уже удалённого файла.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	if serr := h.storage.Delete(r.Context(), fileID); serr != nil {
		apierrors.WriteError(w, serr.StatusCode, serr.Code, serr.Message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Verify обрабатывает POST /files/verify/{id}.
// Сравнивает переданный дайджест с зафиксированным при загрузке.
func (h *FilesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Invalid JSON body: %s", err.Error()))
		return
	}

	result, serr := h.storage.Verify(r.Context(), fileID, req.ExpectedHash)
	if serr != nil {
		apierrors.WriteError(w, serr.StatusCode, serr.Code, serr.Message)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		ID:           result.FileID,
		OriginalName: result.OriginalName,
		Verified:     result.Verified,
		Message:      result.Message,
	})
}

// Exists обрабатывает HEAD /files/exists/{id}.
// 200 для активной записи, 404 в остальных случаях. Тело не пишется.
func (h *FilesHandler) Exists(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	exists, serr := h.storage.Exists(r.Context(), fileID)
	if serr != nil {
		w.WriteHeader(serr.StatusCode)
		return
	}

	if exists {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
}

// writeJSON — вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
