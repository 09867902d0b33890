package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ivanoskov/custody_admin/internal/ledger"
)

var (
	// ErrSubmitInFlight повторная отправка, пока предыдущая не завершилась.
	ErrSubmitInFlight  = errors.New("submission already in flight")
	ErrCanceled        = errors.New("submission canceled")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError поле -> причина.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// MessageFor выбирает текст ошибки: сообщение сервера, затем транспортная ошибка,
// затем fallback. preferErrorField ставит поле "error" ответа перед "message".
func MessageFor(err error, fallback string, preferErrorField bool) string {
	var se *ledger.ServerError
	if errors.As(err, &se) {
		first, second := se.Message, se.ErrorText
		if preferErrorField {
			first, second = second, first
		}
		if first != "" {
			return first
		}
		if second != "" {
			return second
		}
		return fallback
	}
	var re *ledger.RequestError
	if errors.As(err, &re) && re.Message() != "" {
		return re.Message()
	}
	var te *ledger.TimeoutError
	if errors.As(err, &te) {
		return te.Error()
	}
	return fallback
}
