package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrSelfFollow    = errors.New("an account cannot follow itself")
)

// LookupError is returned when a username does not match any account.
type LookupError struct {
	Username string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("account %q not found", e.Username)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrNotFound
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
