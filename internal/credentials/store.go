// Package credentials keeps the WSAPI API key in the OS keychain so the CLI
// does not need it in a config file or the environment.
package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "wsapi-fetch"

// Keys used for storing secrets in the OS keychain.
const (
	KeyAPIKey = "api_key"
)

// ErrNotFound is returned when no API key is stored.
var ErrNotFound = errors.New("no API key stored")

// Store provides thread-safe access to stored credentials.
type Store struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the OS keyring. fileDir, when set, enables an encrypted file
// backend in that directory for systems without a native keychain;
// filePassword unlocks it.
func Open(fileDir string, filePassword string) (*Store, error) {
	cfg := keyring.Config{
		ServiceName:              ServiceName,
		KeychainName:             ServiceName,
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
		LibSecretCollectionName:  ServiceName,
		KeychainTrustApplication: true,
	}
	if fileDir != "" {
		cfg.FileDir = fileDir
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(filePassword)
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// APIKey returns the stored API key, or ErrNotFound.
func (s *Store) APIKey() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.ring.Get(KeyAPIKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read API key: %w", err)
	}
	if len(item.Data) == 0 {
		return "", ErrNotFound
	}
	return string(item.Data), nil
}

// SetAPIKey stores key, replacing any previous value.
func (s *Store) SetAPIKey(key string) error {
	if key == "" {
		return errors.New("API key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Set(keyring.Item{
		Key:         KeyAPIKey,
		Data:        []byte(key),
		Label:       "WSAPI API key",
		Description: "API key used by " + ServiceName,
	})
	if err != nil {
		return fmt.Errorf("store API key: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the stored key. Deleting a missing key is not an error.
func (s *Store) DeleteAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ring.Remove(KeyAPIKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("delete API key: %w", err)
	}
	return nil
}
