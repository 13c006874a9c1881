package domain

import "errors"

var (
	ErrEmptyContent    = errors.New("empty content")
	ErrMissingReceiver = errors.New("missing receiver")
	ErrNoRecipients    = errors.New("no recipients")
)
