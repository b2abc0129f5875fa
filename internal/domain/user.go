package domain

import (
	"time"

	"github.com/google/uuid"
)

// User - учетная запись из внешнего сервиса пользователей (только чтение)
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.DisplayName}
}

const (
	GlobalRoleUser    = "user"
	GlobalRoleAdmin   = "admin"
	GlobalRoleService = "service"
)
