// memory - хранилище пользователей в памяти процесса.
// Используется для локального запуска без PostgreSQL (env=local, пустой db_url)
// и в тестах HTTP-слоя. Данные теряются при перезапуске.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/storage"
)

type Storage struct {
	mu      sync.RWMutex
	seq     int64
	byID    map[int64]*models.User
	byEmail map[string]int64
	byToken map[string]int64
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]int64),
		byToken: make(map[string]int64),
	}
}

// Ping - хранилище в памяти всегда доступно.
func (s *Storage) Ping(ctx context.Context) error { return ctx.Err() }

// Close - noop.
func (s *Storage) Close() {}

// SaveUser создаёт пользователя, выдавая следующий ID.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if user.RefreshToken != "" {
		if _, ok := s.byToken[user.RefreshToken]; ok {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}

	now := time.Now().UTC()
	s.seq++
	user.ID = s.seq
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.byID[stored.ID] = &stored
	s.byEmail[stored.Email] = stored.ID
	if stored.RefreshToken != "" {
		s.byToken[stored.RefreshToken] = stored.ID
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.copyOf(id), nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[id]; !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.copyOf(id), nil
}

// UserByRefreshToken находит владельца refresh-токена.
func (s *Storage) UserByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	const op = "storage.memory.UserByRefreshToken"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if token == "" || !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.copyOf(id), nil
}

// ListUsers возвращает всех пользователей по возрастанию ID.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.list(ctx, "storage.memory.ListUsers", func(*models.User) bool { return true })
}

// ListUsersByRoleAndStatus возвращает пользователей с заданными ролью и статусом.
func (s *Storage) ListUsersByRoleAndStatus(ctx context.Context, role models.Role, status models.Status) ([]*models.User, error) {
	return s.list(ctx, "storage.memory.ListUsersByRoleAndStatus", func(u *models.User) bool {
		return u.Role == role && u.Status == status
	})
}

func (s *Storage) list(ctx context.Context, op string, keep func(*models.User) bool) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.byID))
	for id, u := range s.byID {
		if keep(u) {
			out = append(out, s.copyOf(id))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// UpdateRefreshToken заменяет refresh-токен пользователя.
func (s *Storage) UpdateRefreshToken(ctx context.Context, id int64, token string) error {
	const op = "storage.memory.UpdateRefreshToken"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if owner, taken := s.byToken[token]; token != "" && taken && owner != id {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	if u.RefreshToken != "" {
		delete(s.byToken, u.RefreshToken)
	}
	u.RefreshToken = token
	u.UpdatedAt = time.Now().UTC()
	if token != "" {
		s.byToken[token] = id
	}

	return nil
}

// ClearRefreshToken обнуляет refresh-токен у его владельца.
func (s *Storage) ClearRefreshToken(ctx context.Context, token string) (bool, error) {
	const op = "storage.memory.ClearRefreshToken"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[token]
	if token == "" || !ok {
		return false, nil
	}

	delete(s.byToken, token)
	u := s.byID[id]
	u.RefreshToken = ""
	u.UpdatedAt = time.Now().UTC()

	return true, nil
}

// UpdateStatus меняет статус пользователя.
func (s *Storage) UpdateStatus(ctx context.Context, id int64, status models.Status) (*models.User, error) {
	const op = "storage.memory.UpdateStatus"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u.Status = status
	u.UpdatedAt = time.Now().UTC()

	return s.copyOf(id), nil
}

// copyOf возвращает копию записи, чтобы вызывающий не мутировал состояние хранилища.
// Вызывается под блокировкой.
func (s *Storage) copyOf(id int64) *models.User {
	u := *s.byID[id]
	return &u
}

var _ storage.Storage = (*Storage)(nil)
