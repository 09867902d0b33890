package model

import "time"

// Диалоги консоли оператора.
const (
	DialogLogin    = "login"
	DialogCredit   = "credit"
	DialogTransfer = "transfer"
	DialogEvacuate = "evacuate"
	DialogPush     = "push"
)

// ChatState текущий шаг диалога в чате оператора.
type ChatState struct {
	ChatID    int64     `json:"chat_id"`
	Dialog    string    `json:"dialog"`
	Step      string    `json:"step"`
	Scratch   string    `json:"scratch,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *ChatState) Active() bool { return s != nil && s.Dialog != "" }
