package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username is already exist")
	ErrPhoneTaken         = errors.New("phone number is already exist")

	ErrMissingToken     = errors.New("missing or malformed bearer token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked or expired")

	ErrTokenNotFound = errors.New("token not found")
	ErrUserNotFound  = errors.New("user not found")
)
