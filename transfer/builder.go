package transfer

import (
	"context"
	"fmt"
	"math"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/memo"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rs/zerolog"

	"walletcore/internal/common"
)

const tokenDecimals = common.TokenDecimals

// Builder composes unsigned fee-delegated transfer transactions. The platform
// fee payer covers network gas and funds destination account creation; the
// sender pays the platform fee in the transferred token.
type Builder struct {
	client        ChainClient
	mint          solana.PublicKey
	feeAccount    solana.PublicKey // platform wallet that collects the fee
	feePayer      solana.PublicKey
	feeBps        uint64
	priorityPrice uint64 // compute unit price in micro-lamports for PriorityHigh
	log           zerolog.Logger
}

// BuilderParams configures a Builder.
type BuilderParams struct {
	Client        ChainClient
	Mint          solana.PublicKey
	FeeAccount    solana.PublicKey
	FeePayer      solana.PublicKey
	FeeBps        uint64
	PriorityPrice uint64
	Logger        *zerolog.Logger
}

// NewBuilder creates a transfer builder.
func NewBuilder(p BuilderParams) *Builder {
	log := zerolog.Nop()
	if p.Logger != nil {
		log = *p.Logger
	}
	return &Builder{
		client:        p.Client,
		mint:          p.Mint,
		feeAccount:    p.FeeAccount,
		feePayer:      p.FeePayer,
		feeBps:        p.FeeBps,
		priorityPrice: p.PriorityPrice,
		log:           log,
	}
}

// BuildResult carries the unsigned transaction together with the required
// signing roles and the fee breakdown.
type BuildResult struct {
	Tx          *solana.Transaction
	Required    []solana.PublicKey // fee payer first, then sender
	PlatformFee uint64
	NetAmount   uint64
}

// Build composes the unsigned transaction for a request.
//
// Instruction order: optional compute-unit price directive, destination
// token account creation when the recipient has none (account-not-found is
// the creation trigger, never an error), principal transfer of
// amount - platformFee, platform fee transfer whenever the fee is non-zero,
// optional memo. The fee instruction is mandatory when the fee is positive;
// omitting it silently under-collects revenue.
func (b *Builder) Build(ctx context.Context, req Request, sender solana.PublicKey) (*BuildResult, error) {
	if req.Currency != "USDC" {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrBuildFailure, req.Currency)
	}

	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid recipient address: %v", ErrBuildFailure, err)
	}

	amountMicro, err := common.ToBaseUnits(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q: %v", ErrBuildFailure, req.Amount, err)
	}
	if amountMicro == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrBuildFailure)
	}

	platformFee := b.platformFee(amountMicro, req.FeePolicy)
	if platformFee >= amountMicro {
		return nil, fmt.Errorf("%w: platform fee %d exceeds amount %d", ErrBuildFailure, platformFee, amountMicro)
	}
	netAmount := amountMicro - platformFee

	senderATA, _, err := solana.FindAssociatedTokenAddress(sender, b.mint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive sender token account: %v", ErrBuildFailure, err)
	}
	recipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, b.mint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive recipient token account: %v", ErrBuildFailure, err)
	}
	feeATA, _, err := solana.FindAssociatedTokenAddress(b.feeAccount, b.mint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive platform token account: %v", ErrBuildFailure, err)
	}

	var instructions []solana.Instruction

	if req.Priority == PriorityHigh {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(b.priorityPrice).Build())
	}

	exists, err := b.client.TokenAccountExists(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to check recipient token account: %w", err)
	}
	if !exists {
		// the fee payer funds account creation, keeping the sender's SOL
		// balance untouched
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			b.feePayer, // payer
			recipient,  // owner
			b.mint,     // mint
		).Build())
	}

	instructions = append(instructions, token.NewTransferCheckedInstruction(
		netAmount,
		tokenDecimals,
		senderATA,
		b.mint,
		recipientATA,
		sender,
		[]solana.PublicKey{},
	).Build())

	if platformFee > 0 {
		instructions = append(instructions, token.NewTransferCheckedInstruction(
			platformFee,
			tokenDecimals,
			senderATA,
			b.mint,
			feeATA,
			sender,
			[]solana.PublicKey{},
		).Build())
	}

	if req.Memo != "" {
		instructions = append(instructions, memo.NewMemoInstruction([]byte(req.Memo), sender).Build())
	}

	blockhash, err := b.client.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(b.feePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildFailure, err)
	}

	b.log.Debug().
		Str("recipient", recipient.String()).
		Uint64("net", netAmount).
		Uint64("fee", platformFee).
		Bool("create_account", !exists).
		Msg("transfer transaction built")

	return &BuildResult{
		Tx:          tx,
		Required:    []solana.PublicKey{b.feePayer, sender},
		PlatformFee: platformFee,
		NetAmount:   netAmount,
	}, nil
}

func (b *Builder) platformFee(amountMicro uint64, policy FeePolicy) uint64 {
	if policy == FeePolicyWaived || b.feeBps == 0 {
		return 0
	}
	// 128-bit intermediate: amount * bps can exceed 64 bits near MaxUint64
	hi, lo := bits.Mul64(amountMicro, b.feeBps)
	if hi >= 10_000 {
		// quotient would not fit in 64 bits; saturate so the
		// fee-exceeds-amount check rejects the request
		return math.MaxUint64
	}
	fee, _ := bits.Div64(hi, lo, 10_000)
	return fee
}
