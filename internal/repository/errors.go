package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateKey reports that an insert hit a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrTokenRevoked reports that a refresh token was already revoked when rotation tried to claim it.
	ErrTokenRevoked = errors.New("refresh token already revoked")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
