package storage

import (
	"context"
	"errors"

	"github.com/pribylovaa/accounts-service/internal/models"
)

var (
	// ErrNotFound - запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникальности (email/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
)

//go:generate mockgen -destination=../mocks/mock_storage.go -package=mocks github.com/pribylovaa/accounts-service/internal/storage Storage

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя и проставляет ему ID и таймстемпы.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email (точное совпадение).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id int64) (*models.User, error)
	// UserByRefreshToken находит пользователя, у которого сохранён данный refresh-токен.
	UserByRefreshToken(ctx context.Context, token string) (*models.User, error)
	// ListUsers возвращает всех пользователей в порядке возрастания ID.
	ListUsers(ctx context.Context) ([]*models.User, error)
	// ListUsersByRoleAndStatus возвращает пользователей с заданными ролью и статусом.
	ListUsersByRoleAndStatus(ctx context.Context, role models.Role, status models.Status) ([]*models.User, error)
	// UpdateRefreshToken заменяет сохранённый refresh-токен пользователя.
	UpdateRefreshToken(ctx context.Context, id int64, token string) error
	// ClearRefreshToken обнуляет refresh-токен у владельца token.
	// Возвращает false без ошибки, если владельца нет.
	ClearRefreshToken(ctx context.Context, token string) (bool, error)
	// UpdateStatus меняет статус пользователя и возвращает обновлённую запись.
	UpdateStatus(ctx context.Context, id int64, status models.Status) (*models.User, error)
}

// Storage задает контракт работы с хранилищем.
type Storage interface {
	UserStorage
	Ping(ctx context.Context) error
	Close()
}
