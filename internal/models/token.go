package models

import "github.com/google/uuid"

// TokenType — тип выпущенной креденции.
type TokenType string

const (
	TokenTypeJWT TokenType = "JWT"
)

// Token — долговременная запись о выпущенной креденции.
//
// TokenHash — хэш самого refresh-токена (не jti); сырой токен на сервере
// не хранится. Жизненный цикл: создаётся при sign-in/ротации, мягко
// удаляется при sign-out/ротации/массовом отзыве.
type Token struct {
	ID        uuid.UUID
	TokenHash string
	TokenType TokenType
	Owner     Owner
	OwnerID   uuid.UUID
	Audit
}

// TokenJwt — JWT-специфичная деталь токена (1:1 с Token при TokenType=JWT).
// JTI связывает подписанный токен с его строкой в БД; пара Token+TokenJwt
// создаётся и удаляется в одной транзакции.
type TokenJwt struct {
	ID      uuid.UUID
	TokenID uuid.UUID
	JTI     uuid.UUID
	Audit
}
