// tokens выпускает и проверяет JWT двух классов: access и refresh.
//
// Каждый класс подписывается своим секретом (HS256), поэтому компрометация
// одного секрета не позволяет подделать токены другого класса.
// Любая ошибка проверки (подпись, формат, срок, issuer, audience)
// сводится к единственному ErrInvalidToken.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/accounts-service/internal/config"
	"github.com/pribylovaa/accounts-service/internal/models"
)

// ErrInvalidToken - токен не прошёл проверку. Причина намеренно не раскрывается.
var ErrInvalidToken = errors.New("invalid token")

// Claims - полезная нагрузка обоих классов токенов.
type Claims struct {
	UserID int64       `json:"uid"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

type jwtClaims struct {
	Claims
	jwt.RegisteredClaims
}

// Manager выпускает и проверяет токены.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      []string
	now           func() time.Time
}

// NewManager создаёт Manager из секции auth конфигурации.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени (для тестов).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// AccessTTL возвращает время жизни access-токена.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL возвращает время жизни refresh-токена.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess выпускает access-токен и возвращает момент его истечения.
func (m *Manager) IssueAccess(c Claims) (string, time.Time, error) {
	const op = "tokens.IssueAccess"

	signed, exp, err := m.issue(c, m.accessSecret, m.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// IssueRefresh выпускает refresh-токен и возвращает момент его истечения.
func (m *Manager) IssueRefresh(c Claims) (string, time.Time, error) {
	const op = "tokens.IssueRefresh"

	signed, exp, err := m.issue(c, m.refreshSecret, m.refreshTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// VerifyAccess проверяет access-токен и возвращает его claims.
func (m *Manager) VerifyAccess(token string) (*Claims, error) {
	const op = "tokens.VerifyAccess"

	c, _, err := m.verify(token, m.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

// VerifyRefresh проверяет refresh-токен и возвращает его claims и момент истечения.
func (m *Manager) VerifyRefresh(token string) (*Claims, time.Time, error) {
	const op = "tokens.VerifyRefresh"

	c, exp, err := m.verify(token, m.refreshSecret)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return c, exp, nil
}

func (m *Manager) issue(c Claims, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(ttl)

	claims := jwtClaims{
		Claims: c,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings(m.audience),
			// jti различает токены, выпущенные в одну и ту же секунду.
			ID: uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, exp, nil
}

func (m *Manager) verify(token string, secret []byte) (*Claims, time.Time, error) {
	if token == "" {
		return nil, time.Time{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if len(m.audience) > 0 {
		opts = append(opts, jwt.WithAudience(m.audience...))
	}

	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{},
		func(*jwt.Token) (any, error) { return secret, nil },
		opts...,
	)
	if err != nil || !parsed.Valid {
		return nil, time.Time{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || claims.UserID <= 0 || claims.ExpiresAt == nil {
		return nil, time.Time{}, ErrInvalidToken
	}

	return &claims.Claims, claims.ExpiresAt.Time, nil
}
