package store

import "errors"

// Ошибки хранилища.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
)
