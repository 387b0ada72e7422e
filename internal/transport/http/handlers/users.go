package handlers

import (
	"net/http"

	"github.com/pribylovaa/accounts-service/internal/service"
	"github.com/pribylovaa/accounts-service/internal/transport/http/apierrors"
	"github.com/pribylovaa/accounts-service/internal/transport/http/middleware"
)

// GetUser - GET /users/{id}. Администратор видит любого, пользователь только себя.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p := middleware.PrincipalFrom(r.Context())
	if p == nil {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	user, err := h.svc.UserByID(r.Context(), *p, id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ListUsers - GET /users (только ADMIN).
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// BlockUser - PATCH /users/{id}/block (только ADMIN).
func (h *Handlers) BlockUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p := middleware.PrincipalFrom(r.Context())
	if p == nil {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	user, err := h.svc.BlockUser(r.Context(), id, p.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, blockResponse{
		Message: "Пользователь успешно заблокирован",
		User:    blockedUser{ID: user.ID, Status: user.Status},
	})
}
