package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("not found")

// Error is a failure reported by the upstream store or identity provider.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("store error (%d): %s", e.StatusCode, e.Message)
}

func newError(status int, format string, args ...any) *Error {
	return &Error{StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

// IsConflict reports whether err is an upstream 409.
func IsConflict(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.StatusCode == http.StatusConflict
}

const maxCodeAttempts = 10

func newGameCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "AAAAAA"
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf)
}
