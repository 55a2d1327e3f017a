package keyvault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppp/pppctl/internal/constants"
)

// File keeps keys in a YAML document on disk, readable only by its owner.
// Every SetKey rewrites the whole file.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a store backed by the YAML file at path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// GetKey implements Store.
func (f *File) GetKey(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := keys[name]
	if !ok {
		return "", ErrKeyNotSet(name)
	}
	return v, nil
}

// SetKey implements Store.
func (f *File) SetKey(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys, err := f.read()
	if err != nil {
		return err
	}
	keys[name] = value

	data, err := yaml.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to encode key file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("failed to create key file directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace key file: %w", err)
	}
	return nil
}

func (f *File) read() (map[string]string, error) {
	keys := map[string]string{}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode key file %s: %w", f.path, err)
	}
	if keys == nil {
		keys = map[string]string{}
	}
	return keys, nil
}
