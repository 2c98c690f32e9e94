package jwtx

import "errors"

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrEmptyKey   = errors.New("jwtx: empty signing secret")
)
