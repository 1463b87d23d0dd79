package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// Credential is a verified signing credential. Address is always derived from
// Key on recovery, never read from storage metadata.
type Credential struct {
	OwnerID    string
	Address    solana.PublicKey
	Key        solana.PrivateKey
	Source     string
	FromLegacy bool
}

// Engine scans a CredentialStore for an owner's signing material, verifies
// ownership, and migrates legacy formats forward.
type Engine struct {
	store   CredentialStore
	sources []Source
	cache   *resultCache
	log     zerolog.Logger

	// one recovery decision at a time; concurrent scans could otherwise
	// double-migrate or accept different candidates for the same owner
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSources overrides the scan priority order.
func WithSources(sources []Source) Option {
	return func(e *Engine) { e.sources = sources }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCacheTTL overrides the default 30s result cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cache.ttl = ttl }
}

// WithClock overrides the cache clock. Tests use this to expire entries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.cache.now = now }
}

// NewEngine creates a recovery engine over the given store.
func NewEngine(store CredentialStore, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		sources: DefaultSources,
		cache:   newResultCache(30*time.Second, time.Now),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recover resolves one verified credential for ownerID.
//
// Candidates are scanned in source priority order. A candidate is accepted if
// it came from an owner-scoped key, or if its derived address matches
// declaredAddress. Global candidates are otherwise rejected: shared storage
// can hold another user's keys, and signing with them would move the wrong
// person's funds. Accepted legacy credentials are migrated to the
// current-format key and the legacy entry is deleted.
//
// Failures distinguish ErrCredentialNotFound (nothing stored anywhere) from
// ErrCredentialMismatch (material exists but none of it belongs to this
// owner's declared address).
func (e *Engine) Recover(ctx context.Context, ownerID, declaredAddress string) (*Credential, error) {
	if cred, err, ok := e.cache.get(ownerID); ok {
		return cred, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// double check under the lock; a concurrent call may have just finished
	if cred, err, ok := e.cache.get(ownerID); ok {
		return cred, err
	}

	cred, err := e.scan(ctx, ownerID, declaredAddress)
	e.cache.put(ownerID, cred, err)
	return cred, err
}

func (e *Engine) scan(ctx context.Context, ownerID, declaredAddress string) (*Credential, error) {
	candidatesSeen := 0

	for _, src := range e.sources {
		raw, err := e.store.Get(ctx, src.Key(ownerID))
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s credential: %w", src.Name, err)
		}

		key, err := src.Decode(raw)
		if err != nil {
			e.log.Warn().Str("source", src.Name).Err(err).Msg("undecodable credential material, skipping")
			continue
		}
		// global material found for an owner with no declared address says
		// nothing about that owner; only count candidates that could
		// plausibly be theirs, so the failure kind stays meaningful
		if src.Scoped || declaredAddress != "" {
			candidatesSeen++
		}

		derived := key.PublicKey()
		if !e.accept(src, derived, declaredAddress) {
			e.log.Debug().
				Str("source", src.Name).
				Str("derived", derived.String()).
				Msg("candidate rejected: ownership not verifiable")
			clear(key)
			continue
		}

		cred := &Credential{
			OwnerID:    ownerID,
			Address:    derived,
			Key:        key,
			Source:     src.Name,
			FromLegacy: src.Legacy,
		}

		if src.Legacy {
			if err := e.migrate(ctx, ownerID, src, cred); err != nil {
				// migration is best effort; the credential itself is good
				e.log.Warn().Str("source", src.Name).Err(err).Msg("legacy credential migration failed")
			}
		}

		e.log.Info().
			Str("owner", ownerID).
			Str("source", src.Name).
			Str("address", derived.String()).
			Msg("wallet credential recovered")
		return cred, nil
	}

	if candidatesSeen == 0 {
		return nil, ErrCredentialNotFound
	}
	return nil, ErrCredentialMismatch
}

// accept decides whether a decoded candidate may sign for the owner. The
// derived-vs-declared compare and the scoped-source shortcut together are the
// ownership verification gate; Recover holds the engine mutex across the
// whole decision.
func (e *Engine) accept(src Source, derived solana.PublicKey, declaredAddress string) bool {
	if src.Scoped {
		return true
	}
	return declaredAddress != "" && derived.String() == declaredAddress
}

// migrate rewrites an accepted legacy credential under the current-format
// owner-scoped key and deletes the legacy entry.
func (e *Engine) migrate(ctx context.Context, ownerID string, src Source, cred *Credential) error {
	if err := WriteCurrent(ctx, e.store, ownerID, cred.Key); err != nil {
		return fmt.Errorf("failed to write current-format credential: %w", err)
	}
	if err := e.store.Delete(ctx, src.Key(ownerID)); err != nil {
		return fmt.Errorf("failed to delete legacy credential: %w", err)
	}
	e.log.Info().Str("owner", ownerID).Str("from", src.Name).Msg("legacy credential migrated")
	return nil
}

// Invalidate drops the cached result for an owner, forcing the next Recover
// to rescan. Called after wallet creation or restore.
func (e *Engine) Invalidate(ownerID string) {
	e.cache.invalidate(ownerID)
}

// WriteCurrent stores a private key under the current-format owner-scoped key
// in its canonical encoding.
func WriteCurrent(ctx context.Context, store CredentialStore, ownerID string, key solana.PrivateKey) error {
	return store.Set(ctx, CurrentKey(ownerID), []byte(key.String()))
}

