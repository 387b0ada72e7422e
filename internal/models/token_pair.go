package models

import "time"

// TokenPair - пара токенов, выдаваемая при регистрации и входе.
//
// Описание:
//   - AccessToken - короткоживущий JWT для доступа к API;
//   - RefreshToken - долгоживущий JWT, который сверяется с сохранённым
//     у пользователя значением и позволяет выпускать новые access-токены;
//   - AccessExpiresAt - момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
