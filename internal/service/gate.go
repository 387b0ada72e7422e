package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/storage"
)

// Authenticate устанавливает личность по access-токену.
// Пользователь перечитывается из хранилища; статус BLOCKED здесь не проверяется,
// поэтому неистёкший access-токен заблокированного пользователя продолжает работать.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.Principal, error) {
	const op = "service.gate.Authenticate"

	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.storage.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, nil
}

// Authorize проверяет роль точным сравнением, без иерархии ролей.
func Authorize(p *models.Principal, role models.Role) error {
	const op = "service.gate.Authorize"

	if p == nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if p.Role != role {
		return fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}

	return nil
}
