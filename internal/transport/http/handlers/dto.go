package handlers

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/pribylovaa/accounts-service/internal/models"
	"github.com/pribylovaa/accounts-service/internal/service"
)

// bcrypt обрабатывает не более 72 байт пароля.
const maxPasswordBytes = 72

// RegisterRequest - тело POST /auth/register.
type RegisterRequest struct {
	FullName  string `json:"fullName"`
	BirthDate string `json:"birthDate"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate проверяет формат полей; ошибки собираются по всем полям сразу.
func (r RegisterRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)

	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required.Error("ФИО обязательно"), validation.Length(1, 200)),
		validation.Field(&r.BirthDate, validation.Required.Error("Дата рождения обязательна"), validation.By(isoDate)),
		validation.Field(&r.Email, validation.Required.Error("Email обязателен"), is.Email.Error("Некорректный email")),
		validation.Field(&r.Password,
			validation.Required.Error("Пароль обязателен"),
			validation.Length(6, 0).Error("Пароль должен быть не менее 6 символов"),
			validation.By(maxBytes(maxPasswordBytes)),
		),
	)
}

// Input переводит запрос во входные данные сервиса. Вызывается после Validate.
func (r RegisterRequest) Input() service.RegisterInput {
	birth, _ := parseDate(r.BirthDate)

	return service.RegisterInput{
		FullName:  strings.TrimSpace(r.FullName),
		BirthDate: birth,
		Email:     r.Email,
		Password:  r.Password,
	}
}

// LoginRequest - тело POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Email обязателен")),
		validation.Field(&r.Password, validation.Required.Error("Пароль обязателен")),
	)
}

type registerResponse struct {
	Message     string             `json:"message"`
	User        *models.PublicUser `json:"user"`
	AccessToken string             `json:"accessToken"`
}

type loginResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	User         *models.PublicUser `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type blockedUser struct {
	ID     int64         `json:"id"`
	Status models.Status `json:"status"`
}

type blockResponse struct {
	Message string      `json:"message"`
	User    blockedUser `json:"user"`
}

// parseDate принимает дату ISO 8601: YYYY-MM-DD или полный RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC(), nil
}

func isoDate(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	if _, err := parseDate(s); err != nil {
		return errors.New("Дата рождения должна быть в формате ISO 8601")
	}

	return nil
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > n {
			return errors.New("Пароль слишком длинный")
		}
		return nil
	}
}
