// Package keyvault persists the named secrets used by the bootstrap:
// tokens, key pairs, discovered project identifiers and the master password.
package keyvault

import (
	"context"
	"fmt"
	"sync"

	appErrors "github.com/ppp/pppctl/internal/errors"
)

// Store reads and writes named keys.
type Store interface {
	// GetKey returns the value of name, or a RESOURCE_NOT_FOUND error when it is not set.
	GetKey(ctx context.Context, name string) (string, error)
	// SetKey stores value under name, replacing any previous value.
	SetKey(ctx context.Context, name, value string) error
}

// ErrKeyNotSet builds the error returned for a key that has never been stored.
func ErrKeyNotSet(name string) error {
	return appErrors.ErrResourceMissing(fmt.Sprintf("key %q is not set", name))
}

// GetKeys reads several keys at once, failing on the first missing one.
func GetKeys(ctx context.Context, s Store, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, err := s.GetKey(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Lookup returns the value of name and whether it is set. Errors other than "not set" are returned.
func Lookup(ctx context.Context, s Store, name string) (string, bool, error) {
	v, err := s.GetKey(ctx, name)
	if err != nil {
		if appErrors.GetErrorCode(err) == appErrors.ErrCodeNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return v, v != "", nil
}

// Memory keeps keys in process memory.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{keys: map[string]string{}}
}

// GetKey implements Store.
func (m *Memory) GetKey(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.keys[name]
	if !ok {
		return "", ErrKeyNotSet(name)
	}
	return v, nil
}

// SetKey implements Store.
func (m *Memory) SetKey(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[name] = value
	return nil
}

// Snapshot returns a copy of every stored key.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.keys))
	for k, v := range m.keys {
		out[k] = v
	}
	return out
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
	_ Store = (*ParameterStore)(nil)
	_ Store = (*Redis)(nil)
)
