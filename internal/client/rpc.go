// Package client adapts the Solana JSON-RPC API to the narrow network
// surface the transfer pipeline consumes.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"walletcore/transfer"
)

// RPCClient implements transfer.ChainClient over a Solana RPC endpoint for a
// single token mint.
type RPCClient struct {
	rpcClient *rpc.Client
	mint      solana.PublicKey
}

// New creates an RPC client for the given endpoint and token mint address.
func New(rpcURL, mintAddress string) (*RPCClient, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}
	return &RPCClient{
		rpcClient: rpc.New(rpcURL),
		mint:      mint,
	}, nil
}

// LatestBlockhash returns a recent blockhash for transaction assembly.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	recent, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return recent.Value.Blockhash, nil
}

// TokenAccountExists reports whether the owner has an associated token
// account for the configured mint. A missing account is a normal answer, not
// an error.
func (c *RPCClient) TokenAccountExists(ctx context.Context, owner solana.PublicKey) (bool, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, c.mint)
	if err != nil {
		return false, fmt.Errorf("failed to derive associated token account: %w", err)
	}

	info, err := c.rpcClient.GetAccountInfo(ctx, ata)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get account info: %w", err)
	}
	return info.Value != nil, nil
}

// TokenBalance returns the owner's token balance in base units. An owner
// without a token account has a zero balance.
func (c *RPCClient) TokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, c.mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive associated token account: %w", err)
	}

	balance, err := c.rpcClient.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get token account balance: %w", err)
	}
	if balance.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token balance: %w", err)
	}
	return amount, nil
}

// FeeForMessage asks the network what the message would cost in lamports.
func (c *RPCClient) FeeForMessage(ctx context.Context, msg *solana.Message) (uint64, error) {
	raw, err := msg.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize message: %w", err)
	}

	out, err := c.rpcClient.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(raw), rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get fee for message: %w", err)
	}
	if out.Value == nil {
		return 0, errors.New("fee not available for message")
	}
	return *out.Value, nil
}

// Submit broadcasts signed transaction bytes.
func (c *RPCClient) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentFinalized,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// SignatureStatus queries the confirmation state of a broadcast signature.
func (c *RPCClient) SignatureStatus(ctx context.Context, sig solana.Signature) (transfer.SignatureStatus, error) {
	out, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return transfer.SignatureStatus{}, fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		// not yet visible to the cluster
		return transfer.SignatureStatus{}, nil
	}

	st := out.Value[0]
	status := transfer.SignatureStatus{
		Found:     true,
		Finalized: st.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
	}
	if st.Confirmations != nil {
		status.Confirmations = *st.Confirmations
	}
	if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed && status.Confirmations == 0 {
		status.Confirmations = 1
	}
	if st.Err != nil {
		status.Err = fmt.Errorf("on-chain error: %v", st.Err)
	}
	return status, nil
}

// isNotFoundError checks if error indicates that an account doesn't exist
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "could not find account") ||
		strings.Contains(errStr, "not found")
}
