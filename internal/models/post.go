package models

import "github.com/google/uuid"

// Post — публикация пользователя.
type Post struct {
	ID       uuid.UUID
	AuthorID uuid.UUID
	Title    string
	Content  string
	Audit
}
