// Package auth provides bearer tokens for the remote store and the
// storage of the credential used to reach it.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// credentialAccount is the storage key for the remote credential.
const credentialAccount = "remote-credential"

// ErrNoCredential is returned when no credential has been stored.
var ErrNoCredential = errors.New("not logged in")

// Credential holds the remote store location and the bearer token for it.
type Credential struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// MarshalJSON implements json.Marshaler.
func (c Credential) MarshalJSON() ([]byte, error) {
	type credentialAlias Credential
	return json.Marshal(credentialAlias(c))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Credential) UnmarshalJSON(data []byte) error {
	type credentialAlias Credential
	var alias credentialAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Credential(alias)
	return nil
}

// Validate checks that the credential can authenticate a request.
func (c Credential) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("token cannot be empty")
	}
	if strings.Count(c.Token, ".") != 2 {
		return errors.New("token is not a JWT")
	}
	return nil
}

// Storage abstracts credential storage backends.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/storage.go . Storage
type Storage interface {
	// Set stores a credential.
	Set(account, secret string) error

	// Get retrieves a credential.
	Get(account string) (string, error)

	// Delete removes a credential.
	Delete(account string) error
}

// StoreCredential validates cred and saves it in JSON format.
func StoreCredential(storage Storage, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	return storage.Set(credentialAccount, string(data))
}

// LoadCredential retrieves the stored credential. notFound is the storage's
// own missing-item error, which is reported as ErrNoCredential.
func LoadCredential(storage Storage, notFound error) (*Credential, error) {
	data, err := storage.Get(credentialAccount)
	if err != nil {
		if notFound != nil && errors.Is(err, notFound) {
			return nil, ErrNoCredential
		}
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &cred, nil
}

// DeleteCredential removes the stored credential.
func DeleteCredential(storage Storage) error {
	return storage.Delete(credentialAccount)
}
