package services

import "errors"

var (
	ErrInvalidURL         = errors.New("[service]: invalid url")
	ErrInvalidTTL         = errors.New("[service]: invalid ttl")
	ErrCodeSpaceExhausted = errors.New("[service]: short code space exhausted")
	ErrNotFound           = errors.New("[service]: link not found")
	ErrExpired            = errors.New("[service]: link expired")
	ErrUnavailable        = errors.New("[service]: storage unavailable")
)
