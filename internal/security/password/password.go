// password - одностороннее хэширование паролей (bcrypt).
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost - стоимость bcrypt по умолчанию.
const DefaultCost = 10

// Hasher хэширует и проверяет пароли с заданной стоимостью bcrypt.
type Hasher struct {
	cost  int
	dummy string
}

// New создаёт Hasher. Стоимость вне допустимого диапазона bcrypt заменяется на DefaultCost.
// Заодно вычисляется dummy-хэш для выравнивания времени входа по неизвестному email.
func New(cost int) (*Hasher, error) {
	const op = "security.password.New"

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}

	h := &Hasher{cost: cost}

	dummy, err := h.Hash("dummy-password-never-matches")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	h.dummy = dummy

	return h, nil
}

// Hash возвращает bcrypt-хэш пароля. Соль случайна, поэтому два вызова дают разные хэши.
func (h *Hasher) Hash(plain string) (string, error) {
	const op = "security.password.Hash"

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

// Verify сообщает, получен ли digest из plain. Некорректный digest даёт false.
func (h *Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// Dummy возвращает хэш, с которым сравнивается пароль, когда пользователь не найден.
func (h *Hasher) Dummy() string { return h.dummy }
