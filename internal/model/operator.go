package model

import "strings"

// Operator описывает администратора, вошедшего в систему.
type Operator struct {
	UserID    string `json:"user_id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func (o Operator) DisplayName() string {
	name := strings.TrimSpace(o.Firstname + " " + o.Lastname)
	if name == "" {
		return o.Email
	}
	return name
}
