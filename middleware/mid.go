package middleware

import (
	"errors"

	"github.com/selva-b/e-com-sub000/internal/auth"
)

// Mid holds the dependencies required by the middleware functions.
type Mid struct {
	keys *auth.Keys
}

func NewMid(keys *auth.Keys) (*Mid, error) {
	if keys == nil {
		return nil, errors.New("auth keys cannot be nil")
	}
	return &Mid{keys: keys}, nil
}
