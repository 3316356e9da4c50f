package models

import "github.com/google/uuid"

// Owner — тип владельца сущности/сессии.
type Owner string

const (
	OwnerUser  Owner = "USER"
	OwnerAdmin Owner = "ADMIN"
)

// Valid сообщает, является ли значение известным типом владельца.
func (o Owner) Valid() bool {
	return o == OwnerUser || o == OwnerAdmin
}

// Actor — явный контекст «кто выполняет операцию».
//
// Передаётся параметром во все операции сервисного и storage-слоя вместо
// скрытого request-scoped состояния: аудит-штампы (created_by/updated_by/
// deleted_by) становятся чистой функцией входных аргументов.
type Actor struct {
	Owner Owner
	ID    uuid.UUID
}

// Anonymous — актор для неаутентифицированных операций
// (sign-up, password-reset до подтверждения личности).
func Anonymous() Actor {
	return Actor{Owner: OwnerUser, ID: uuid.Nil}
}

// IsAdmin сообщает, действует ли актор с административными правами.
func (a Actor) IsAdmin() bool {
	return a.Owner == OwnerAdmin
}

// IsAnonymous сообщает, что актор не аутентифицирован.
func (a Actor) IsAnonymous() bool {
	return a.ID == uuid.Nil
}
