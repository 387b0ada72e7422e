package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/pkg/log"
	"github.com/pribylovaa/accounts-service/internal/pkg/redact"
	"github.com/pribylovaa/accounts-service/internal/storage"
)

// CanView сообщает, может ли requester просматривать пользователя targetID:
// администратор видит всех, остальные только себя.
func CanView(requester models.Principal, targetID int64) bool {
	return requester.Role == models.RoleAdmin || requester.UserID == targetID
}

// UserByID возвращает публичную проекцию пользователя.
func (s *Service) UserByID(ctx context.Context, requester models.Principal, id int64) (*models.PublicUser, error) {
	const op = "service.users.UserByID"

	if !CanView(requester, id) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

// ListUsers возвращает всех пользователей без пагинации.
// Роль ADMIN проверяется до вызова (RequireRole).
func (s *Service) ListUsers(ctx context.Context) ([]*models.PublicUser, error) {
	const op = "service.users.ListUsers"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]*models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}

	return out, nil
}

// BlockUser переводит пользователя targetID в статус BLOCKED.
//
// Запрещено блокировать себя и единственного активного администратора;
// активные администраторы пересчитываются на момент вызова.
// Выданные ранее access-токены не отзываются.
func (s *Service) BlockUser(ctx context.Context, targetID, requesterID int64) (*models.PublicUser, error) {
	const op = "service.users.BlockUser"

	lg := log.From(ctx)

	if targetID == requesterID {
		return nil, fmt.Errorf("%s: %w", op, ErrSelfBlock)
	}

	target, err := s.storage.UserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if target.Role == models.RoleAdmin {
		admins, err := s.storage.ListUsersByRoleAndStatus(ctx, models.RoleAdmin, models.StatusActive)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if len(admins) == 1 && admins[0].ID == targetID {
			return nil, fmt.Errorf("%s: %w", op, ErrLastAdmin)
		}
	}

	updated, err := s.storage.UpdateStatus(ctx, targetID, models.StatusBlocked)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_blocked",
		slog.Int64("user_id", targetID),
		slog.Int64("by", requesterID),
	)

	return updated.Public(), nil
}

// AdminSeed - учётные данные администратора, создаваемого при старте.
type AdminSeed struct {
	Email    string
	Password string
	FullName string
}

// EnsureAdmin создаёт активного администратора, если email ещё не занят.
// Повторный вызов ничего не меняет. Возвращает true, если пользователь создан.
func (s *Service) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	const op = "service.users.EnsureAdmin"

	lg := log.From(ctx)

	_, err := s.storage.UserByEmail(ctx, seed.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(seed.Password)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	admin := &models.User{
		FullName:     seed.FullName,
		Email:        seed.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}

	if err := s.storage.SaveUser(ctx, admin); err != nil {
		// Параллельный старт другой реплики успел создать администратора.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("admin_bootstrapped",
		slog.Int64("user_id", admin.ID),
		slog.String("email", redact.Email(admin.Email)),
	)

	return true, nil
}
