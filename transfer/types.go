package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Priority selects how aggressively the transaction should be scheduled by
// the network.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// FeePolicy controls platform fee collection for a transfer.
type FeePolicy uint8

const (
	// FeePolicyStandard charges the configured platform fee rate.
	FeePolicyStandard FeePolicy = iota
	// FeePolicyWaived charges no platform fee (promotions, internal moves).
	FeePolicyWaived
)

// Request describes one transfer. Immutable once submitted.
type Request struct {
	Sender    string // owner id of the sending user
	Recipient string // base58 recipient wallet address
	Amount    string // decimal token amount, e.g. "25.00"
	Currency  string // only "USDC" is supported
	Memo      string
	Priority  Priority
	FeePolicy FeePolicy
}

// Outcome is the terminal result of a transfer attempt. All amounts are in
// token base units.
type Outcome struct {
	Signature   solana.Signature
	PlatformFee uint64
	NetAmount   uint64
	FeeEstimate uint64 // estimated network fee in lamports, paid by the platform
	Err         error
}

// Success reports whether the transfer settled on chain.
func (o *Outcome) Success() bool {
	return o != nil && o.Err == nil
}

var (
	// ErrInsufficientBalance means the sender cannot cover principal plus
	// platform fee. Checked before any transaction is built.
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrBuildFailure wraps malformed requests: bad recipient address,
	// unsupported currency, fee meeting or exceeding the transfer amount.
	ErrBuildFailure = errors.New("failed to build transaction")

	// ErrSignerUnavailable means a required signing role (sender or fee
	// payer) has no available secret. Building fails closed rather than
	// degrading to sender-pays-gas.
	ErrSignerUnavailable = errors.New("required signer unavailable")

	// ErrBroadcastFailure means the network rejected the signed bytes.
	ErrBroadcastFailure = errors.New("failed to broadcast transaction")

	// ErrConfirmationTimeout means the broadcast was accepted but
	// confirmation never resolved within the polling budget. Funds may or
	// may not have moved; callers must re-check status before retrying.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// SignatureStatus is the network's view of a broadcast transaction.
type SignatureStatus struct {
	Found         bool
	Confirmations uint64
	Finalized     bool
	Err           error // non-nil when the transaction failed on chain
}

// ChainClient is the network surface the transfer pipeline consumes.
type ChainClient interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	TokenAccountExists(ctx context.Context, owner solana.PublicKey) (bool, error)
	TokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	FeeForMessage(ctx context.Context, msg *solana.Message) (uint64, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error)
}

// SignerSet holds the secrets available for signing, keyed by public key.
type SignerSet struct {
	keys map[solana.PublicKey]solana.PrivateKey
}

// NewSignerSet builds a signer set from the given private keys.
func NewSignerSet(keys ...solana.PrivateKey) *SignerSet {
	s := &SignerSet{keys: make(map[solana.PublicKey]solana.PrivateKey, len(keys))}
	for _, k := range keys {
		s.keys[k.PublicKey()] = k
	}
	return s
}

// Resolve returns the private key for a public key, or nil.
func (s *SignerSet) Resolve(pub solana.PublicKey) *solana.PrivateKey {
	if k, ok := s.keys[pub]; ok {
		return &k
	}
	return nil
}

// Missing returns the required roles that have no available secret.
func (s *SignerSet) Missing(required []solana.PublicKey) []solana.PublicKey {
	var missing []solana.PublicKey
	for _, pub := range required {
		if _, ok := s.keys[pub]; !ok {
			missing = append(missing, pub)
		}
	}
	return missing
}

// Pending is the eventual outcome of an in-flight transfer. Duplicate
// submissions receive the same Pending and therefore the same outcome.
type Pending struct {
	done    chan struct{}
	once    sync.Once
	outcome *Outcome
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Done is closed once the transfer settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the settled outcome, or nil while still in flight.
func (p *Pending) Outcome() *Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return nil
	}
}

// Wait blocks until settlement or context cancellation. Abandoning the wait
// does not disturb the in-flight transfer.
func (p *Pending) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve settles the pending exactly once. Later calls are ignored.
func (p *Pending) resolve(o *Outcome) {
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
	})
}
