package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

const (
	defaultPollAttempts = 10
	defaultPollInterval = time.Second
)

// Executor signs, broadcasts and confirms built transactions.
type Executor struct {
	client   ChainClient
	attempts int
	interval time.Duration
	log      zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPolling overrides the confirmation polling budget.
func WithPolling(attempts int, interval time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.attempts = attempts
		e.interval = interval
	}
}

// WithExecutorLogger attaches a logger.
func WithExecutorLogger(log zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// NewExecutor creates an executor over the given client.
func NewExecutor(client ChainClient, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:   client,
		attempts: defaultPollAttempts,
		interval: defaultPollInterval,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute signs a built transaction with the available signer set, broadcasts
// it once, and polls for confirmation.
//
// Every required role must have a secret before anything is signed; a missing
// role fails closed with ErrSignerUnavailable instead of falling back to a
// different fee model. After a successful broadcast the outcome is one of:
// on-chain failure, confirmed success, or ErrConfirmationTimeout when the
// polling budget runs out with the transaction still pending. A timeout is
// never reported as success; funds may or may not have moved.
func (e *Executor) Execute(ctx context.Context, build *BuildResult, signers *SignerSet) *Outcome {
	outcome := &Outcome{
		PlatformFee: build.PlatformFee,
		NetAmount:   build.NetAmount,
	}

	if missing := signers.Missing(build.Required); len(missing) > 0 {
		outcome.Err = fmt.Errorf("%w: missing %d of %d required roles",
			ErrSignerUnavailable, len(missing), len(build.Required))
		return outcome
	}

	if _, err := build.Tx.Sign(signers.Resolve); err != nil {
		outcome.Err = fmt.Errorf("%w: %v", ErrSignerUnavailable, err)
		return outcome
	}

	if fee, err := e.client.FeeForMessage(ctx, &build.Tx.Message); err != nil {
		e.log.Debug().Err(err).Msg("network fee estimate unavailable")
	} else {
		outcome.FeeEstimate = fee
	}

	sig, err := e.client.Submit(ctx, build.Tx)
	if err != nil {
		outcome.Err = fmt.Errorf("%w: %v", ErrBroadcastFailure, err)
		return outcome
	}
	outcome.Signature = sig

	e.log.Info().Str("signature", sig.String()).Msg("transaction broadcast")

	outcome.Err = e.confirm(ctx, sig)
	return outcome
}

// confirm polls signature status until a terminal state or the attempt budget
// is exhausted. Each poll three-way branches: failed on chain, confirmed, or
// still pending.
func (e *Executor) confirm(ctx context.Context, sig solana.Signature) error {
	for attempt := 1; attempt <= e.attempts; attempt++ {
		status, err := e.client.SignatureStatus(ctx, sig)
		if err != nil {
			e.log.Warn().Int("attempt", attempt).Err(err).Msg("status query failed")
		} else {
			if status.Err != nil {
				return fmt.Errorf("transaction failed on chain: %w", status.Err)
			}
			if status.Confirmations > 0 || status.Finalized {
				e.log.Info().
					Str("signature", sig.String()).
					Int("attempt", attempt).
					Msg("transaction confirmed")
				return nil
			}
		}

		if attempt == e.attempts {
			break
		}
		select {
		case <-time.After(e.interval):
		case <-ctx.Done():
			// broadcast already happened; report the unresolved state
			// rather than pretending the transfer was cancelled
			return fmt.Errorf("%w: %v", ErrConfirmationTimeout, ctx.Err())
		}
	}
	return ErrConfirmationTimeout
}
