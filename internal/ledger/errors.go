package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnauthorized сервер отклонил токен (HTTP 401).
var ErrUnauthorized = errors.New("ledger: credential rejected")

// RequestError запрос не получил пригодного ответа: сеть, DNS, обрыв, нечитаемое тело.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Message текст транспортной ошибки без префикса операции.
func (e *RequestError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// ServerError сервер ответил, но отказал. Message и ErrorText берутся из полей
// "message" и "error" тела ответа.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
	ErrorText  string
}

func (e *ServerError) Error() string {
	if text := e.Text(); text != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, text)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

// Text первое непустое из message и error.
func (e *ServerError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorText
}

func (e *ServerError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// TimeoutError ответ не пришёл до истечения срока.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s: no response after %s", e.Op, e.After)
	}
	return fmt.Sprintf("%s: no response before deadline", e.Op)
}
