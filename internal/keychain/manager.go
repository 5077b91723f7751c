// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for scrapbook.
// This module manages all interactions with the OS keychain/credential store and is the
// persisted key-value store of the CLI: account connection strings, the management-plane
// token and the identifier of the last connected database all live here.
//
// Native backends are preferred (macOS Keychain, Windows Credential Manager, Secret
// Service/KWallet on Linux). On systems without one, the encrypted file backend is used;
// SCRAPBOOK_KEYRING_PASSWORD unlocks it non-interactively.
package keychain

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"scrapbook/cli/internal/xdg"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "scrapbook"

// Keys used for storing secrets in the OS keychain.
const (
	KeyConnectedTarget  = "connected_target"
	KeyManagementToken  = "management_token"
	keyAccountDSNPrefix = "account_dsn:"
)

// PasswordEnv holds the passphrase for the file backend.
const PasswordEnv = "SCRAPBOOK_KEYRING_PASSWORD"

// Options selects keyring backends by name ("keychain", "wincred", "secret-service",
// "kwallet", "pass", "file"). Empty Backends picks the platform defaults.
type Options struct {
	Backends []string
	FileDir  string
}

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager opens the OS keyring with the given options.
func NewManager(opts Options) (*Manager, error) {
	ring, err := openRing(opts)
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewWithRing wraps an already opened keyring (tests use keyring.NewArrayKeyring).
func NewWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// openRing opens the OS keyring, falling back to the encrypted file backend.
func openRing(opts Options) (keyring.Keyring, error) {
	allowed := make([]keyring.BackendType, 0, len(opts.Backends))
	for _, b := range opts.Backends {
		allowed = append(allowed, keyring.BackendType(b))
	}
	if len(allowed) == 0 {
		allowed = defaultBackends()
	}

	fileDir := opts.FileDir
	if fileDir == "" {
		state, err := xdg.StateDir()
		if err != nil {
			return nil, err
		}
		fileDir = filepath.Join(state, "keyring")
	}

	cfg := keyring.Config{
		ServiceName:              ServiceName,
		AllowedBackends:          allowed,
		KeychainTrustApplication: true,
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
		LibSecretCollectionName:  ServiceName,
		KWalletAppID:             ServiceName,
		KWalletFolder:            ServiceName,
		FileDir:                  fileDir,
		FilePasswordFunc:         filePassword,
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if errors.Is(err, keyring.ErrNoAvailImpl) {
			return nil, errors.New("no secure storage backend available; set " + PasswordEnv + " to use the encrypted file store")
		}
		return nil, err
	}
	return ring, nil
}

func defaultBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend, keyring.FileBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend, keyring.FileBackend}
	default:
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend, keyring.FileBackend}
	}
}

func filePassword(prompt string) (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	return keyring.TerminalPrompt(prompt)
}

func (m *Manager) set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

// get returns "" without error when key is absent.
func (m *Manager) get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, err := m.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(it.Data), nil
}

func (m *Manager) remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// SaveAccountDSN stores the connection string of a registered account.
// This method is thread-safe.
func (m *Manager) SaveAccountDSN(account, dsn string) error {
	return m.set(keyAccountDSNPrefix+account, dsn)
}

// LoadAccountDSN retrieves the connection string of a registered account.
// Missing entries yield "".
func (m *Manager) LoadAccountDSN(account string) (string, error) {
	return m.get(keyAccountDSNPrefix + account)
}

// ClearAccount removes the connection string of an account.
func (m *Manager) ClearAccount(account string) error {
	return m.remove(keyAccountDSNPrefix + account)
}

// SaveConnected remembers the identifier of the connected database target.
func (m *Manager) SaveConnected(id string) error {
	return m.set(KeyConnectedTarget, id)
}

// LoadConnected returns the remembered target identifier, or "" when none is stored.
func (m *Manager) LoadConnected() (string, error) {
	return m.get(KeyConnectedTarget)
}

// ClearConnected forgets the remembered target.
func (m *Manager) ClearConnected() error {
	return m.remove(KeyConnectedTarget)
}

// SaveManagementToken stores the bearer token for management-plane calls.
func (m *Manager) SaveManagementToken(token string) error {
	return m.set(KeyManagementToken, token)
}

// LoadManagementToken retrieves the management-plane bearer token, or "".
func (m *Manager) LoadManagementToken() (string, error) {
	return m.get(KeyManagementToken)
}

// ClearAll removes every secret owned by scrapbook from the keychain.
// This method is thread-safe and should be used with caution.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.ring.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		_ = m.ring.Remove(k)
	}
	return nil
}
