// Package wallet is the application-facing surface of the transfer-safety
// core: credential recovery, deduplicated fee-delegated transfers, and
// transfer status queries. It is an in-process library; the surrounding
// application owns all user interaction.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"walletcore/internal/common"
	"walletcore/recovery"
	"walletcore/transfer"
)

// ErrWalletExists is returned by CreateWallet when the owner already has a
// declared wallet address. Creating a second identity would strand any funds
// held at the declared address, so the caller must run recovery (or a seed
// phrase restore) instead.
var ErrWalletExists = errors.New("owner already has a declared wallet")

// Service wires the recovery engine, the in-flight registry, and the transfer
// pipeline behind the three operations the application consumes.
type Service struct {
	engine   *recovery.Engine
	registry *transfer.Registry
	builder  *transfer.Builder
	executor *transfer.Executor
	client   transfer.ChainClient
	creds    recovery.CredentialStore
	profiles recovery.ProfileStore
	feePayer solana.PrivateKey
	log      zerolog.Logger
}

// Params collects the collaborators a Service needs.
type Params struct {
	Engine   *recovery.Engine
	Registry *transfer.Registry
	Builder  *transfer.Builder
	Executor *transfer.Executor
	Client   transfer.ChainClient
	Creds    recovery.CredentialStore
	Profiles recovery.ProfileStore
	FeePayer solana.PrivateKey
	Logger   *zerolog.Logger
}

// New creates the service facade.
func New(p Params) *Service {
	log := zerolog.Nop()
	if p.Logger != nil {
		log = *p.Logger
	}
	return &Service{
		engine:   p.Engine,
		registry: p.Registry,
		builder:  p.Builder,
		executor: p.Executor,
		client:   p.Client,
		creds:    p.Creds,
		profiles: p.Profiles,
		feePayer: p.FeePayer,
		log:      log,
	}
}

// EnsureCredential resolves a verified signing credential for the owner,
// recovering and migrating from legacy storage when needed.
func (s *Service) EnsureCredential(ctx context.Context, ownerID string) (*recovery.Credential, error) {
	declared, err := s.profiles.DeclaredAddress(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load declared address: %w", err)
	}
	return s.engine.Recover(ctx, ownerID, declared)
}

// DeduplicatedTransfer submits a transfer with at-most-once semantics. A
// request that matches an in-flight transfer (same sender, recipient and
// 2-decimal amount within the dedup window) does not start a second
// transaction; it waits for and returns the original outcome.
func (s *Service) DeduplicatedTransfer(ctx context.Context, req transfer.Request) (*transfer.Outcome, error) {
	amountMicro, err := common.ToBaseUnits(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q: %v", transfer.ErrBuildFailure, req.Amount, err)
	}

	pending, existing, settle := s.registry.CheckAndRegister(req.Sender, req.Recipient, amountMicro)
	if existing {
		s.log.Info().
			Str("sender", req.Sender).
			Str("recipient", req.Recipient).
			Str("amount", req.Amount).
			Msg("duplicate transfer request, returning in-flight outcome")
		return pending.Wait(ctx)
	}

	outcome := s.run(ctx, req, amountMicro)
	settle(outcome)
	if outcome.Success() {
		s.log.Info().
			Str("signature", outcome.Signature.String()).
			Str("net_amount", common.FromBaseUnits(outcome.NetAmount)).
			Str("network_fee_sol", common.LamportsToSOL(outcome.FeeEstimate)).
			Msg("transfer settled")
	}
	return outcome, nil
}

// run performs a single registered transfer attempt end to end.
func (s *Service) run(ctx context.Context, req transfer.Request, amountMicro uint64) *transfer.Outcome {
	cred, err := s.EnsureCredential(ctx, req.Sender)
	if err != nil {
		return &transfer.Outcome{Err: err}
	}

	balance, err := s.client.TokenBalance(ctx, cred.Address)
	if err != nil {
		return &transfer.Outcome{Err: fmt.Errorf("failed to check balance: %w", err)}
	}
	if balance < amountMicro {
		return &transfer.Outcome{Err: fmt.Errorf("%w: have %s, need %s",
			transfer.ErrInsufficientBalance, common.FromBaseUnits(balance), common.FromBaseUnits(amountMicro))}
	}

	build, err := s.builder.Build(ctx, req, cred.Address)
	if err != nil {
		return &transfer.Outcome{Err: err}
	}

	signers := transfer.NewSignerSet(cred.Key, s.feePayer)
	return s.executor.Execute(ctx, build, signers)
}

// TransferStatus queries the confirmation state of a previously broadcast
// transfer signature.
func (s *Service) TransferStatus(ctx context.Context, signature string) (transfer.SignatureStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return transfer.SignatureStatus{}, fmt.Errorf("invalid signature: %w", err)
	}
	return s.client.SignatureStatus(ctx, sig)
}

// Close stops background work owned by the service's collaborators.
func (s *Service) Close() {
	s.registry.Stop()
}
