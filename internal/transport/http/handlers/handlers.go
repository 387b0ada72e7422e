// handlers - REST-обработчики сервиса учётных записей.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/accounts-service/internal/config"
	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/service"
	"github.com/pribylovaa/accounts-service/internal/transport/http/apierrors"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// Service - операции бизнес-логики, которые вызывают обработчики.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	UserByID(ctx context.Context, requester models.Principal, id int64) (*models.PublicUser, error)
	ListUsers(ctx context.Context) ([]*models.PublicUser, error)
	BlockUser(ctx context.Context, targetID, requesterID int64) (*models.PublicUser, error)
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc    Service
	cookie config.CookieConfig
}

func New(svc Service, cookie config.CookieConfig) *Handlers {
	return &Handlers{svc: svc, cookie: cookie}
}

// writeJSON - единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict - строгий JSON-декодер: запрещаем неизвестные поля,
// хвост после объекта и тело больше maxBodyBytes.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return apierrors.BadRequest("Некорректное тело запроса")
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apierrors.BadRequest("Некорректное тело запроса")
	}

	return nil
}

// pathID разбирает числовой {id} из пути.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.BadRequest("Невалидный ID пользователя")
	}

	return id, nil
}
