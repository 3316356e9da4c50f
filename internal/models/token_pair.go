package models

import "time"

// TokenPair — пара токенов, выдаваемая при аутентификации/ротации.
//
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT с тем же jti; на сервере хранится
//     только его хэш;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
