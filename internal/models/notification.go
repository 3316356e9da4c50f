package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification — уведомление, адресованное пользователю.
type Notification struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Title  string
	Body   string
	// ReadAt заполняется при чтении списка (join c notification_read);
	// nil — уведомление ещё не прочитано.
	ReadAt *time.Time
	Audit
}
