package recovery

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by CredentialStore implementations when no value
// exists under the requested key.
var ErrKeyNotFound = errors.New("key not found")

// CredentialStore is secure key-value storage holding raw signing material.
// Implementations wrap platform secure storage (keychain, keystore, encrypted
// files); several historical key-naming schemes may coexist in one store.
type CredentialStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ProfileStore exposes the wallet address each user has declared for their
// profile. An empty address means the user never had a wallet.
type ProfileStore interface {
	DeclaredAddress(ctx context.Context, ownerID string) (string, error)
}

var (
	// ErrCredentialNotFound means no credential candidates exist anywhere in
	// local storage for the owner. Safe to offer wallet creation.
	ErrCredentialNotFound = errors.New("no wallet credential found")

	// ErrCredentialMismatch means candidates were found but none derives the
	// address declared for the owner. The device lost the keys for an
	// existing identity; the user must restore from their seed phrase.
	// Creating a fresh wallet here would strand funds at the old address.
	ErrCredentialMismatch = errors.New("stored credentials do not match declared wallet address")
)

// RequiresUserAction reports whether a recovery failure needs the user to
// intervene (create a wallet or restore a seed phrase) rather than a retry.
func RequiresUserAction(err error) bool {
	return errors.Is(err, ErrCredentialNotFound) || errors.Is(err, ErrCredentialMismatch)
}
