package models

import "github.com/google/uuid"

// User - модель пользователя в системе.
// PasswordHash — bcrypt-хэш; наружу никогда не отдаётся (см. SubjectView).
type User struct {
	ID           uuid.UUID
	Owner        Owner
	Email        string
	Username     string
	PasswordHash string
	Audit
}

// SubjectView — «безопасная» проекция пользователя для ответов API.
type SubjectView struct {
	ID       uuid.UUID `json:"id"`
	Owner    Owner     `json:"owner"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}

// View возвращает проекцию без секретов и аудит-полей.
func (u *User) View() SubjectView {
	return SubjectView{
		ID:       u.ID,
		Owner:    u.Owner,
		Email:    u.Email,
		Username: u.Username,
	}
}
