package app

import "errors"

var (
	ErrNoRecipients = errors.New("no recipients")
	ErrEmptyMessage = errors.New("message is empty")
	ErrInvalidPhone = errors.New("phone number has no digits")
)
