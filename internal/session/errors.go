package session

import (
	"errors"
	"fmt"
)

// Kind причина неудачного входа.
type Kind int

const (
	// InvalidCredentials сервер ответил и отказал.
	InvalidCredentials Kind = iota + 1
	// NetworkFailure пригодного ответа не было.
	NetworkFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case NetworkFailure:
		return "network_failure"
	}
	return "unknown"
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNetworkFailure     = errors.New("network failure")
	// ErrLoggedOut причина, которую получают подписчики при явном выходе.
	ErrLoggedOut = errors.New("logged out")
	// ErrExpired срок действия токена истёк.
	ErrExpired = errors.New("credential expired")
)

type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("login failed (%s)", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Kind == InvalidCredentials
	case ErrNetworkFailure:
		return e.Kind == NetworkFailure
	}
	return false
}
