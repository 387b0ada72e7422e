package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/pkg/log"
	"github.com/pribylovaa/accounts-service/internal/pkg/redact"
	"github.com/pribylovaa/accounts-service/internal/storage"
	"github.com/pribylovaa/accounts-service/internal/tokens"
)

// RegisterInput - данные регистрации, уже прошедшие валидацию формата.
type RegisterInput struct {
	FullName  string
	BirthDate time.Time
	Email     string
	Password  string
}

// AuthResult - результат регистрации и входа.
type AuthResult struct {
	User   *models.PublicUser
	Tokens *models.TokenPair
}

// Register регистрирует нового пользователя с ролью USER.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx)

	_, err := s.storage.UserByEmail(ctx, in.Email)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		FullName:     in.FullName,
		BirthDate:    in.BirthDate,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", redact.Email(user.Email)),
	)

	return &AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Login выполняет вход по email и паролю.
// Неизвестный email и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	user, err := s.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Та же работа bcrypt, что и для существующего пользователя.
			s.hasher.Verify(password, s.hasher.Dummy())
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if user.Status == models.StatusBlocked {
		lg.Warn("login_blocked_user",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrUserBlocked)
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_logged_in", slog.Int64("user_id", user.ID))

	return &AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Refresh выпускает новый access-токен по действующему refresh-токену.
// Refresh-токен не ротируется.
//
// Порядок проверок: подпись и срок, denylist, сверка с хранилищем.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	lg := log.From(ctx)

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, _, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, refreshToken)
		switch {
		case err != nil:
			// Хранилище остаётся источником истины, поэтому продолжаем без кэша.
			lg.Warn("denylist_check_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		case revoked:
			lg.Warn("refresh_revoked",
				slog.String("op", op),
				slog.Int64("user_id", claims.UserID),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
	}

	user, err := s.storage.UserByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found",
				slog.String("op", op),
				slog.String("token", redact.Token(refreshToken)),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.ID != claims.UserID {
		lg.Warn("refresh_user_mismatch",
			slog.String("op", op),
			slog.Int64("token_user_id", claims.UserID),
			slog.Int64("user_id", user.ID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	// Сверх исходного поведения: заблокированный пользователь не продлевает
	// сессию, хотя его токен ещё совпадает с сохранённым.
	if user.Status == models.StatusBlocked {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	access, exp, err := s.tokens.IssueAccess(claimsOf(user))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{AccessToken: access, AccessExpiresAt: exp}, nil
}

// Logout завершает сессию, которой принадлежит refreshToken.
// Повторный вызов и неизвестный токен - не ошибка.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	lg := log.From(ctx)

	if refreshToken == "" {
		return nil
	}

	cleared, err := s.storage.ClearRefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.denylist == nil {
		return nil
	}

	// cleared=false не означает чужой токен: фоновая запись из issueSession
	// могла ещё не дойти до хранилища и вернёт сессию после logout.
	// Поэтому в denylist попадает любой действующий refresh-токен.
	_, exp, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		// Подделанный или истёкший токен незачем держать в denylist.
		return nil
	}

	if !cleared {
		lg.Debug("logout_session_not_found",
			slog.String("op", op),
			slog.String("token", redact.Token(refreshToken)),
		)
	}

	if err := s.denylist.Revoke(ctx, refreshToken, time.Until(exp)); err != nil {
		lg.Warn("denylist_revoke_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return nil
}

// issueSession выпускает пару токенов и сохраняет refresh-токен в фоне.
func (s *Service) issueSession(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.auth.issueSession"

	claims := claimsOf(user)

	access, exp, err := s.tokens.IssueAccess(claims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, _, err := s.tokens.IssueRefresh(claims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.persistRefreshToken(ctx, user.ID, refresh)

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: exp,
	}, nil
}

// persistRefreshToken записывает refresh-токен пользователю, не блокируя ответ.
// Ошибка записи только логируется: до её завершения токен проходит
// проверку подписи, но не сверку с хранилищем.
func (s *Service) persistRefreshToken(ctx context.Context, userID int64, token string) {
	const op = "service.auth.persistRefreshToken"

	bg := context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		if err := s.storage.UpdateRefreshToken(bg, userID, token); err != nil {
			log.From(bg).Error("refresh_token_persist_failed",
				slog.String("op", op),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	}()
}

func claimsOf(user *models.User) tokens.Claims {
	return tokens.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}
}
