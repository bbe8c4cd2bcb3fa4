package auth

import (
	"errors"

	"nathanbeddoewebdev/sirius/internal/util"
)

const ServiceName = "sirius"

// TokenKey is the keychain entry holding the query service bearer token.
const TokenKey = "query-service"

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(key string, token string) error
	GetToken(key string) (string, error)
	DeleteToken(key string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeKey normalizes a token key for consistent lookup.
func NormalizeKey(key string) string {
	return util.NormalizeKey(key)
}
