// service содержит бизнес-логику сервиса учётных записей:
// регистрацию, вход, обновление и отзыв сессий, администрирование
// пользователей и проверку доступа к защищённым операциям.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасном storage.Storage.
//   - Все ошибки бизнес-логики - значения *Error, разворачивающиеся
//     (errors.Is) в один из видов ErrValidation, ErrUnauthorized,
//     ErrForbidden, ErrNotFound, ErrConflict. Остальные ошибки транспорт
//     считает непредвиденными (HTTP 500).
//   - Сохранение refresh-токена после выдачи выполняется в фоне;
//     Wait дожидается всех незавершённых записей.
package service

import (
	"errors"
	"sync"

	"github.com/pribylovaa/accounts-service/internal/cache"
	"github.com/pribylovaa/accounts-service/internal/security/password"
	"github.com/pribylovaa/accounts-service/internal/storage"
	"github.com/pribylovaa/accounts-service/internal/tokens"
)

// Виды ошибок. Транспорт маппит их на HTTP-статусы.
var (
	// ErrValidation - некорректный ввод (HTTP 400).
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized - нет или недействительны учётные данные (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden - действие запрещено политикой (HTTP 403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound - сущность не найдена (HTTP 404).
	ErrNotFound = errors.New("not found")
	// ErrConflict - нарушение уникальности (HTTP 409).
	ErrConflict = errors.New("conflict")
)

// Error - типизированная ошибка бизнес-логики с сообщением для клиента.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap позволяет проверять вид ошибки через errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

var (
	ErrEmailTaken         = &Error{Kind: ErrConflict, Msg: "Пользователь с таким email уже существует"}
	ErrInvalidCredentials = &Error{Kind: ErrValidation, Msg: "Неверный email или пароль"}
	ErrUserBlocked        = &Error{Kind: ErrForbidden, Msg: "Ваш аккаунт заблокирован"}
	ErrInvalidToken       = &Error{Kind: ErrUnauthorized, Msg: "Пользователь не авторизован"}
	ErrAccessDenied       = &Error{Kind: ErrForbidden, Msg: "Недостаточно прав"}
	ErrSelfBlock          = &Error{Kind: ErrForbidden, Msg: "Администратор не может заблокировать сам себя"}
	ErrLastAdmin          = &Error{Kind: ErrForbidden, Msg: "Нельзя заблокировать единственного активного администратора"}
	ErrUserNotFound       = &Error{Kind: ErrNotFound, Msg: "Пользователь не найден"}
)

// Service описывает бизнес-логику сервиса учётных записей.
type Service struct {
	storage  storage.Storage
	tokens   *tokens.Manager
	hasher   *password.Hasher
	denylist cache.Denylist // может быть nil, если Redis не сконфигурирован

	pending sync.WaitGroup
}

// New создаёт новый экземпляр Service.
func New(st storage.Storage, tm *tokens.Manager, h *password.Hasher) *Service {
	return &Service{
		storage: st,
		tokens:  tm,
		hasher:  h,
	}
}

// SetDenylist подключает denylist отозванных refresh-токенов (опционально).
func (s *Service) SetDenylist(d cache.Denylist) {
	s.denylist = d
}

// Wait блокируется до завершения всех фоновых записей refresh-токенов.
// Вызывается при остановке сервиса до закрытия хранилища.
func (s *Service) Wait() {
	s.pending.Wait()
}
