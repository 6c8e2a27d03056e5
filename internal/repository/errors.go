package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInsufficientFunds is returned when a conditional debit would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
