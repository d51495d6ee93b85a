// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keystore stores credentials and repository coordinates outside the
// plain configuration file.
//
// FileStore keeps a JSON map in a 0600 file. EnvStore layers REPOCHAT_*
// environment variables over any Store so CI and .env files can supply
// secrets without touching disk.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/jeranaias/repochat/internal/util"
)

// Well-known keys.
const (
	KeyProviderAPIKey  = "provider.api_key"
	KeyRepositoryOwner = "repository.owner"
	KeyRepositoryName  = "repository.name"
	KeyRepositoryToken = "repository.token"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a small key/value store for sensitive settings.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Clear removes every key.
	Clear() error
}

// ErrInvalidKey is returned for empty or malformed keys.
var ErrInvalidKey = errors.New("invalid key")

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, " \t\n=") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// =============================================================================
// FILE-BASED STORE
// =============================================================================

// FileStore keeps every key in one JSON document with owner-only
// permissions.
type FileStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewFileStore creates a store backed by path on fs.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

// DefaultPath returns ~/.repochat/secrets.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".repochat", "secrets.json")
	}
	return filepath.Join(home, ".repochat", "secrets.json")
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFS(f.fs, f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Get implements Store.
func (f *FileStore) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Store.
func (f *FileStore) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

// Delete implements Store.
func (f *FileStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

// Clear implements Store.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// Keys returns the stored key names in sorted order.
func (f *FileStore) Keys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// =============================================================================
// ENVIRONMENT OVERLAY
// =============================================================================

// EnvStore resolves keys from the environment before delegating to the
// wrapped store. Writes always go to the wrapped store.
type EnvStore struct {
	Store
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvStore wraps base. A key such as "repository.token" is looked up as
// REPOCHAT_REPOSITORY_TOKEN.
func NewEnvStore(base Store) *EnvStore {
	return &EnvStore{Store: base, prefix: "REPOCHAT_", lookup: os.LookupEnv}
}

// EnvName returns the environment variable consulted for key.
func (e *EnvStore) EnvName(key string) string {
	name := strings.ToUpper(key)
	name = strings.NewReplacer(".", "_", "-", "_").Replace(name)
	return e.prefix + name
}

// Get implements Store.
func (e *EnvStore) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	if v, ok := e.lookup(e.EnvName(key)); ok && v != "" {
		return v, true, nil
	}
	return e.Store.Get(key)
}

// Lookup returns the value for key or "" when absent or unreadable.
func Lookup(s Store, key string) string {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return ""
	}
	return v
}
