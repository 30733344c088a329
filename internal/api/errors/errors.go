// Пакет errors — конструкторы стандартных ошибок HTTP-границы File Service.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // имя пакета совпадает со stdlib намеренно, импортируется как apierrors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок File Service.
const (
	// CodeValidationError — некорректные входные данные (вина клиента).
	CodeValidationError = "VALIDATION_ERROR"
	// CodeNotFound — идентификатор неизвестен или запись мягко удалена.
	CodeNotFound = "NOT_FOUND"
	// CodeStorageUnavailable — носитель недоступен для чтения/записи.
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	// CodeStorageInconsistent — активная запись без blob (или наоборот):
	// след предыдущего частичного сбоя, требует внимания оператора.
	CodeStorageInconsistent = "STORAGE_INCONSISTENT"
	// CodeConflict — коллизия идентификатора при вставке.
	CodeConflict = "CONFLICT"
	// CodeFileTooLarge — размер файла превышает лимит.
	CodeFileTooLarge = "FILE_TOO_LARGE"
	// CodeUnauthorized — запрос без валидного токена (если auth включён).
	CodeUnauthorized = "UNAUTHORIZED"
	// CodeInternalError — прочие внутренние ошибки.
	CodeInternalError = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// StorageUnavailable — 500 носитель недоступен.
func StorageUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeStorageUnavailable, message)
}

// StorageInconsistent — 500 дрейф между метаданными и blob-хранилищем.
func StorageInconsistent(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeStorageInconsistent, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
