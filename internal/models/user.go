package models

import "time"

// Role - роль пользователя. Назначается при создании и далее не меняется.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Status - статус учётной записи. Переход ACTIVE -> BLOCKED односторонний.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
)

// User - модель пользователя в системе.
//
// RefreshToken хранит единственную действующую сессию пользователя;
// пустая строка означает отсутствие сессии.
type User struct {
	ID           int64
	FullName     string
	BirthDate    time.Time
	Email        string
	PasswordHash string
	Role         Role
	Status       Status
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser - публичная проекция пользователя без пароля и refresh-токена.
type PublicUser struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"fullName"`
	BirthDate time.Time `json:"birthDate"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public возвращает проекцию пользователя, безопасную для отдачи клиенту.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		FullName:  u.FullName,
		BirthDate: u.BirthDate,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// IsActiveAdmin сообщает, является ли пользователь активным администратором.
func (u *User) IsActiveAdmin() bool {
	return u.Role == RoleAdmin && u.Status == StatusActive
}
