package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/torbel/Interflow/internal/repo"
)

// ErrorCode — машинно-читаемый код ошибки в теле ответа.
// Клиент (в частности internal/cli) сверяется с кодом, а не с HTTP
// статусом: текст сообщения может меняться, код — нет.
type ErrorCode string

const (
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodeMethodNotAllow ErrorCode = "METHOD_NOT_ALLOWED"
)

// Конверты ответов. Всё API отвечает одним из трёх:
// {"data": ...}, {"data": [...], "total": N} или {"error": {...}}.

// DataResponse — единичный результат.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — список с общим количеством для пагинации.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// ErrorResponse — ошибка с кодом и сообщением.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — содержимое конверта ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// JSON пишет произвольное значение как JSON с заданным статусом.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Success — 200 с данными в конверте.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created — 201 с созданным ресурсом.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// NoContent — 204 без тела.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List — 200 со списком и total.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error пишет конверт ошибки с заданным статусом и кодом.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest — 400: некорректный запрос клиента.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound — 404: ресурс не существует.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict — 409: нарушение уникальности.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState — 422: запрос корректен, но состояние ресурса
// не допускает операцию.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// MethodNotAllowed — 405.
func MethodNotAllowed(w http.ResponseWriter) {
	Error(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
}

// InternalError — 500. Причина уходит в лог, наружу — общий текст:
// внутренние детали не место в ответе API.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// repoStatus сопоставляет сентинели репозитория HTTP-ответам.
var repoStatus = []struct {
	sentinel error
	status   int
	code     ErrorCode
}{
	{repo.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{repo.ErrAlreadyExists, http.StatusConflict, ErrCodeConflict},
	{repo.ErrInvalidState, http.StatusUnprocessableEntity, ErrCodeInvalidState},
}

// HandleRepoError пишет HTTP-ответ по ошибке репозитория.
// Возвращает true, если ответ отправлен; nil ошибка — false, ответа нет.
// Для ErrNotFound используется notFoundMsg — текст сентинеля не знает,
// какой именно ресурс искали.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}
	for _, m := range repoStatus {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := err.Error()
		if m.code == ErrCodeNotFound {
			msg = notFoundMsg
		}
		Error(w, m.status, m.code, msg)
		return true
	}
	InternalError(w, logger, err)
	return true
}
