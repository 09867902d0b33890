package model

import (
	"strings"
	"time"
)

// Статусы пользователя в фильтре списка.
const (
	StatusAll      = "all"
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBlocked  = "blocked"
	StatusFrozen   = "frozen"
)

// User пользователь кастодиального сервиса.
type User struct {
	UserID       string    `json:"user_id"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phone_number"`
	ActiveStatus string    `json:"active_status"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.Firstname + " " + u.Lastname)
}

// UserFilter клиентский фильтр списка пользователей.
type UserFilter struct {
	Search string
	Status string
}

// Match применяет все активные условия фильтра (логическое И).
func (f UserFilter) Match(u User) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(u.Email), q) &&
			!strings.Contains(strings.ToLower(u.Firstname+" "+u.Lastname), q) {
			return false
		}
	}
	if f.Status != "" && f.Status != StatusAll {
		if !strings.EqualFold(u.ActiveStatus, f.Status) {
			return false
		}
	}
	return true
}

// Params возвращает параметры фильтра для ключа кэша.
func (f UserFilter) Params() map[string]string {
	return map[string]string{
		"search": strings.ToLower(strings.TrimSpace(f.Search)),
		"status": strings.ToLower(f.Status),
	}
}
