// Package keystore provides an encrypted file-backed CredentialStore, used by
// the operator tool and as a reference implementation for embedders.
package keystore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"walletcore/internal/crypto"
	"walletcore/recovery"
)

// FileStore keeps each value in its own file under dir, sealed with the store
// passphrase (AES-256-GCM, scrypt-derived key).
type FileStore struct {
	dir        string
	passphrase []byte
}

// NewFileStore opens (creating if needed) a store rooted at dir.
// passphrase must be []byte for security (caller should zero it after use);
// the store keeps its own copy.
func NewFileStore(dir string, passphrase []byte) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	own := make([]byte, len(passphrase))
	copy(own, passphrase)
	return &FileStore{dir: dir, passphrase: own}, nil
}

// Get reads and unseals the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, recovery.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	return crypto.Open(data, s.passphrase)
}

// Set seals value and writes it under key, replacing any existing entry.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := crypto.Seal(value, s.passphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(key), sealed, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// Delete removes the entry under key. Deleting a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}
	return nil
}

// Close zeroes the in-memory passphrase copy.
func (s *FileStore) Close() {
	clear(s.passphrase)
}

func (s *FileStore) path(key string) string {
	// storage keys only contain [a-z0-9._-]; anything else is flattened so a
	// key can never escape the store directory
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, safe+".cred")
}
