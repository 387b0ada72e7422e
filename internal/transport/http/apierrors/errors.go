// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - HTTP-статус по виду ошибки (service.ErrValidation -> 400 и т.д.);
//   - человекочитаемое message из *service.Error;
//   - details по полям для ошибок валидации запроса (ozzo-validation).
//
// Непредвиденные ошибки всегда превращаются в 500/internal без деталей.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/pribylovaa/accounts-service/internal/service"
)

// StatusClientClosedRequest - нестандартный код "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError - единый формат для фронта.
// Code - короткий стабильный код для машиночитаемой обработки.
// Message - безопасное человекочитаемое описание.
// Details - ошибки по полям запроса (только для 400).
// RequestID - прокидывается из X-Request-Id (для трассировки).
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ErrorResponse - корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal;
//   - validation.Errors - 400 с details по полям;
//   - *service.Error - статус по виду, message из ошибки;
//   - голый вид (service.ErrForbidden и т.п.) - статус по виду, стандартное message;
//   - context.Canceled / DeadlineExceeded - 499 / 504;
//   - прочее - 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return internal()
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			if ferr != nil {
				details[field] = ferr.Error()
			}
		}

		return http.StatusBadRequest, ErrorResponse{Error: APIError{
			Code:    "invalid_argument",
			Message: "Ошибка валидации",
			Details: details,
		}}
	}

	status, code, msg, ok := fromKind(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout, ErrorResponse{Error: APIError{
				Code: "deadline_exceeded", Message: "deadline exceeded",
			}}
		case errors.Is(err, context.Canceled):
			return StatusClientClosedRequest, ErrorResponse{Error: APIError{
				Code: "canceled", Message: "canceled",
			}}
		}

		return internal()
	}

	var se *service.Error
	if errors.As(err, &se) && se.Msg != "" {
		msg = se.Msg
	}

	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// WriteError - хелпер для HTTP-хендлеров и middleware.
// Пишет статус и тело, добавляет request_id из заголовка запроса.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// BadRequest - локальная ошибка разбора запроса (битый JSON, нечисловой id).
func BadRequest(msg string) error {
	return &service.Error{Kind: service.ErrValidation, Msg: msg}
}

// fromKind - маппинг видов ошибок сервисного слоя:
//   - ErrValidation -> 400
//   - ErrUnauthorized -> 401
//   - ErrForbidden -> 403
//   - ErrNotFound -> 404
//   - ErrConflict -> 409
func fromKind(err error) (int, string, string, bool) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid_argument", "Некорректный запрос", true
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthenticated", "Пользователь не авторизован", true
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "permission_denied", "Недостаточно прав", true
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "Ресурс не найден", true
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "already_exists", "Конфликт данных", true
	default:
		return 0, "", "", false
	}
}

func internal() (int, ErrorResponse) {
	return http.StatusInternalServerError, ErrorResponse{Error: APIError{
		Code:    "internal",
		Message: "Непредвиденная ошибка сервера",
	}}
}

// WriteStatus пишет ошибку с явно заданными статусом и кодом
// (для ответов самого роутера: 404 по пути, 405 по методу).
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	resp := ErrorResponse{Error: APIError{Code: code, Message: msg}}
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
