package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/accounts-service/internal/config"
	"github.com/pribylovaa/accounts-service/internal/mocks"
	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/pkg/log"
	"github.com/pribylovaa/accounts-service/internal/security/password"
	"github.com/pribylovaa/accounts-service/internal/storage"
	"github.com/pribylovaa/accounts-service/internal/tokens"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "unit-access-secret",
		RefreshSecret:   "unit-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "accounts-service",
		Audience:        []string{"accounts-web"},
	}
}

func newHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.New(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// newServiceWith собирает Service поверх произвольного хранилища.
// Фоновые записи дожидаются до проверок gomock-контроллера.
func newServiceWith(t *testing.T, st storage.Storage) *Service {
	t.Helper()
	svc := New(st, tokens.NewManager(testAuthCfg()), newHasher(t))
	t.Cleanup(svc.Wait)
	return svc
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	return newServiceWith(t, st), st
}

func mustHash(t *testing.T, svc *Service, pw string) string {
	t.Helper()
	h, err := svc.hasher.Hash(pw)
	require.NoError(t, err)
	return h
}

func activeUser(id int64, email string, role models.Role) *models.User {
	return &models.User{
		ID:        id,
		FullName:  "Test User",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Email:     email,
		Role:      role,
		Status:    models.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

// syncBuffer - потокобезопасный буфер для логов фоновых горутин.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func ctxWithLogBuffer() (context.Context, *syncBuffer) {
	buf := &syncBuffer{}
	lg := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return log.Into(context.Background(), lg), buf
}
