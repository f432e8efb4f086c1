// Package models содержит доменные структуры трекера расходов:
// пользователя, расходы, доходы и агрегированные сводки,
// а также структуры для приёма JSON-запросов.
package models

import (
	"strings"
	"time"
)

// User представляет зарегистрированного пользователя.
type User struct {
	ID                   string
	Name                 string
	Email                string
	PasswordHash         string
	ResetPasswordToken   *string    // токен восстановления пароля, nil если не выдан
	ResetPasswordExpires *time.Time // срок действия токена восстановления
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// FirstName первое слово имени пользователя, "User" если имя пустое.
func (u *User) FirstName() string {
	if u == nil {
		return "User"
	}
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return "User"
	}
	return fields[0]
}

// Profile возвращает публичное представление пользователя без хэша пароля.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Profile публичные данные пользователя.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest тело запроса регистрации.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest тело запроса входа.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse ответ на успешную регистрацию или вход.
type AuthResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// PasswordResetEvent сообщение, которое публикуется в брокер при запросе сброса пароля.
type PasswordResetEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
