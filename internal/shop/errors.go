package shop

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalid           = errors.New("invalid input")
)

// Entity names used in NotFoundError and ConflictError.
const (
	EntityStore   = "store"
	EntityProduct = "product"
	EntityOrder   = "order"
)

// NotFoundError tells which lookup failed. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError; storage implementations return it for missing rows.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// MissingEntity reports which entity a not-found error refers to ("" if err is not one).
func MissingEntity(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Entity
	}
	return ""
}

// ConflictError tells which entity already exists. It matches ErrConflict.
// ID is zero when the storage layer cannot tell which row collided.
type ConflictError struct {
	Entity string
	ID     int64
}

func (e *ConflictError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s already exists", e.Entity)
	}
	return fmt.Sprintf("%s %d already exists", e.Entity, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(entity string, id int64) error {
	return &ConflictError{Entity: entity, ID: id}
}

// ConflictingEntity reports which entity a conflict error refers to ("" if err is not one).
func ConflictingEntity(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Entity
	}
	return ""
}
