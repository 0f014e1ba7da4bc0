package repository

import "errors"

var (
	ErrDBNotReady = errors.New("database not initialized")
	// ErrStockConflict is returned when a conditional stock update matches no row.
	ErrStockConflict = errors.New("stock conflict")
)
