package models

// Principal - личность, установленная по access-токену и перечитанная из хранилища.
type Principal struct {
	UserID int64
	Email  string
	Role   Role
}
