package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe (o está soft-deleted).
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indica que la operación no está implementada por este driver.
	ErrNotImplemented = errors.New("not implemented")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
