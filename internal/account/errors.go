package account

import "errors"

// Sentinel outcomes returned by Store and the cookie codec.
// Callers test them with errors.Is; wrapped errors carry the account name.
var (
	ErrNotFound      = errors.New("account not found")
	ErrAlreadyExists = errors.New("account already exists")
	ErrFormat        = errors.New("cookie must be base64 encoded")
)
