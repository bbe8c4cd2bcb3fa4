package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps tokens in the OS keychain under one service name.
type KeyringStore struct {
	serviceName string
}

func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

func (k *KeyringStore) SetToken(key string, token string) error {
	return keyring.Set(k.serviceName, NormalizeKey(key), token)
}

func (k *KeyringStore) GetToken(key string) (string, error) {
	token, err := keyring.Get(k.serviceName, NormalizeKey(key))
	if err == nil {
		return token, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	return "", err
}

func (k *KeyringStore) DeleteToken(key string) error {
	err := keyring.Delete(k.serviceName, NormalizeKey(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
