// Package keychain stores secrets in the operating system keyring, falling
// back to an encrypted file where no native keyring is available.
package keychain

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// serviceName is the service identifier used for all dexkeep credentials.
const serviceName = "dexkeep"

// ErrNotFound is returned when a credential is not found in the keychain.
var ErrNotFound = errors.New("credential not found in keychain")

// Keychain provides secure credential storage.
type Keychain interface {
	// Set stores a credential in the keychain.
	Set(account, secret string) error

	// Get retrieves a credential from the keychain.
	// Returns ErrNotFound if the credential does not exist.
	Get(account string) (string, error)

	// Delete removes a credential from the keychain.
	// Returns nil if the credential does not exist.
	Delete(account string) error
}

// Config selects the keyring backend.
type Config struct {
	// Backend forces one keyring backend by name (e.g. "file",
	// "keychain", "secret-service"). Empty lets the platform choose.
	Backend string

	// FileDir is where the file backend keeps its encrypted items.
	FileDir string

	// Password unlocks the file backend.
	Password string
}

type keychain struct {
	ring keyring.Keyring
}

// New opens the keyring described by cfg.
func New(cfg Config) (Keychain, error) {
	kc := keyring.Config{
		ServiceName:                    serviceName,
		KeychainName:                   serviceName,
		KeychainTrustApplication:       true,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		FileDir:                        cfg.FileDir,
		FilePasswordFunc:               keyring.FixedStringPrompt(cfg.Password),
	}
	if cfg.Backend != "" {
		kc.AllowedBackends = []keyring.BackendType{keyring.BackendType(cfg.Backend)}
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &keychain{ring: ring}, nil
}

// Wrap adapts an already opened keyring.
func Wrap(ring keyring.Keyring) Keychain {
	return &keychain{ring: ring}
}

func (k *keychain) Set(account, secret string) error {
	return k.ring.Set(keyring.Item{
		Key:   account,
		Data:  []byte(secret),
		Label: "dexkeep - " + account,
	})
}

func (k *keychain) Get(account string) (string, error) {
	item, err := k.ring.Get(account)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

func (k *keychain) Delete(account string) error {
	err := k.ring.Remove(account)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
