package transfer

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/memo"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChain is a scriptable ChainClient for builder and executor tests.
type fakeChain struct {
	mu sync.Mutex

	accountExists bool
	balance       uint64
	fee           uint64
	blockhash     solana.Hash

	submitErr   error
	submitCount int
	submitted   *solana.Transaction

	statuses  []SignatureStatus // consumed one per SignatureStatus call
	statusAt  int
	statusErr error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		accountExists: true,
		balance:       1_000_000_000,
		fee:           5000,
		blockhash:     solana.Hash{1},
	}
}

func (f *fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return f.blockhash, nil
}

func (f *fakeChain) TokenAccountExists(context.Context, solana.PublicKey) (bool, error) {
	return f.accountExists, nil
}

func (f *fakeChain) TokenBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.balance, nil
}

func (f *fakeChain) FeeForMessage(context.Context, *solana.Message) (uint64, error) {
	return f.fee, nil
}

func (f *fakeChain) Submit(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return solana.Signature{}, f.submitErr
	}
	f.submitCount++
	f.submitted = tx
	return solana.Signature{42}, nil
}

func (f *fakeChain) SignatureStatus(context.Context, solana.Signature) (SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return SignatureStatus{}, f.statusErr
	}
	if f.statusAt >= len(f.statuses) {
		return SignatureStatus{}, nil // pending forever
	}
	st := f.statuses[f.statusAt]
	f.statusAt++
	return st, nil
}

func (f *fakeChain) submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCount
}

var (
	testMint      = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	testFeeWallet = solana.NewWallet()
)

func newTestBuilder(chain ChainClient, feePayer solana.PublicKey) *Builder {
	return NewBuilder(BuilderParams{
		Client:        chain,
		Mint:          testMint,
		FeeAccount:    testFeeWallet.PublicKey(),
		FeePayer:      feePayer,
		FeeBps:        100, // 1%
		PriorityPrice: 10_000,
	})
}

// programCounts tallies instructions by owning program.
func programCounts(t *testing.T, tx *solana.Transaction) map[solana.PublicKey]int {
	t.Helper()
	counts := make(map[solana.PublicKey]int)
	for _, ix := range tx.Message.Instructions {
		program := tx.Message.AccountKeys[ix.ProgramIDIndex]
		counts[program]++
	}
	return counts
}

// transferAmounts extracts the amounts of all TransferChecked instructions in
// message order.
func transferAmounts(t *testing.T, tx *solana.Transaction) []uint64 {
	t.Helper()
	var amounts []uint64
	for _, ix := range tx.Message.Instructions {
		program := tx.Message.AccountKeys[ix.ProgramIDIndex]
		if !program.Equals(token.ProgramID) {
			continue
		}
		data := []byte(ix.Data)
		require.GreaterOrEqual(t, len(data), 10)
		require.Equal(t, uint8(12), data[0], "expected TransferChecked")
		amounts = append(amounts, binary.LittleEndian.Uint64(data[1:9]))
	}
	return amounts
}

func TestBuildFeeDelegatedTransfer(t *testing.T) {
	chain := newFakeChain()
	sender := solana.NewWallet()
	feePayer := solana.NewWallet()
	b := newTestBuilder(chain, feePayer.PublicKey())

	// 25.00 at 1% platform fee: 0.25 fee, 24.75 to the recipient
	build, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "25.00",
		Currency:  "USDC",
		Memo:      "invoice 17",
	}, sender.PublicKey())
	require.NoError(t, err)

	assert.Equal(t, uint64(250_000), build.PlatformFee)
	assert.Equal(t, uint64(24_750_000), build.NetAmount)
	assert.Equal(t, []solana.PublicKey{feePayer.PublicKey(), sender.PublicKey()}, build.Required)

	counts := programCounts(t, build.Tx)
	assert.Equal(t, 2, counts[token.ProgramID], "one principal and one fee transfer")
	assert.Equal(t, 1, counts[memo.ProgramID])
	assert.Zero(t, counts[associatedtokenaccount.ProgramID])

	assert.Equal(t, []uint64{24_750_000, 250_000}, transferAmounts(t, build.Tx))

	// gas is delegated: the fee payer is the transaction payer
	assert.Equal(t, feePayer.PublicKey(), build.Tx.Message.AccountKeys[0])
}

func TestBuildWithoutMemo(t *testing.T) {
	chain := newFakeChain()
	b := newTestBuilder(chain, solana.NewWallet().PublicKey())

	build, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "25.00",
		Currency:  "USDC",
	}, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	counts := programCounts(t, build.Tx)
	assert.Zero(t, counts[memo.ProgramID])
}

func TestBuildCreatesMissingRecipientAccount(t *testing.T) {
	chain := newFakeChain()
	chain.accountExists = false
	b := newTestBuilder(chain, solana.NewWallet().PublicKey())

	build, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "25.00",
		Currency:  "USDC",
	}, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	counts := programCounts(t, build.Tx)
	assert.Equal(t, 1, counts[associatedtokenaccount.ProgramID])
	assert.Equal(t, 2, counts[token.ProgramID])
}

func TestBuildPriorityDirective(t *testing.T) {
	chain := newFakeChain()
	b := newTestBuilder(chain, solana.NewWallet().PublicKey())

	build, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "25.00",
		Currency:  "USDC",
		Priority:  PriorityHigh,
	}, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	counts := programCounts(t, build.Tx)
	assert.Equal(t, 1, counts[computebudget.ProgramID])
	// the directive must come first
	first := build.Tx.Message.AccountKeys[build.Tx.Message.Instructions[0].ProgramIDIndex]
	assert.Equal(t, computebudget.ProgramID, first)
}

func TestBuildWaivedFeeOmitsFeeInstruction(t *testing.T) {
	chain := newFakeChain()
	b := newTestBuilder(chain, solana.NewWallet().PublicKey())

	build, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "25.00",
		Currency:  "USDC",
		FeePolicy: FeePolicyWaived,
	}, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	assert.Zero(t, build.PlatformFee)
	assert.Equal(t, uint64(25_000_000), build.NetAmount)
	counts := programCounts(t, build.Tx)
	assert.Equal(t, 1, counts[token.ProgramID], "principal transfer only")
}

func TestBuildTinyAmountFeeRoundsToZero(t *testing.T) {
	chain := newFakeChain()
	b := newTestBuilder(chain, solana.NewWallet().PublicKey())

	// 1% of 0.000050 is half a base unit, which rounds to 0
	build, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "0.000050",
		Currency:  "USDC",
	}, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	assert.Zero(t, build.PlatformFee)
	counts := programCounts(t, build.Tx)
	assert.Equal(t, 1, counts[token.ProgramID])
}

func TestBuildRejectsBadRequests(t *testing.T) {
	chain := newFakeChain()
	b := newTestBuilder(chain, solana.NewWallet().PublicKey())
	sender := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey().String()

	tests := []struct {
		name string
		req  Request
	}{
		{"bad recipient address", Request{Recipient: "not-an-address", Amount: "1", Currency: "USDC"}},
		{"unsupported currency", Request{Recipient: recipient, Amount: "1", Currency: "SOL"}},
		{"zero amount", Request{Recipient: recipient, Amount: "0", Currency: "USDC"}},
		{"unparsable amount", Request{Recipient: recipient, Amount: "1,5", Currency: "USDC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), tt.req, sender)
			assert.ErrorIs(t, err, ErrBuildFailure)
		})
	}
}

func TestBuildHugeAmountFeeDoesNotOverflow(t *testing.T) {
	chain := newFakeChain()
	b := newTestBuilder(chain, solana.NewWallet().PublicKey())

	// the largest representable amount: 1% of it overflows a 64-bit product
	build, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "18446744073709.551615",
		Currency:  "USDC",
	}, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	const maxMicro = uint64(18446744073709551615)
	wantFee := maxMicro / 100
	assert.Equal(t, wantFee, build.PlatformFee)
	assert.Equal(t, maxMicro-wantFee, build.NetAmount)
	assert.Equal(t, []uint64{maxMicro - wantFee, wantFee}, transferAmounts(t, build.Tx))
}

func TestBuildHugeAmountExtremeRateFailsClean(t *testing.T) {
	chain := newFakeChain()
	b := NewBuilder(BuilderParams{
		Client:     chain,
		Mint:       testMint,
		FeeAccount: testFeeWallet.PublicKey(),
		FeePayer:   solana.NewWallet().PublicKey(),
		FeeBps:     200_000, // 2000%, quotient exceeds 64 bits at max amount
	})

	_, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "18446744073709.551615",
		Currency:  "USDC",
	}, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrBuildFailure)
}

func TestBuildFeeSwallowingAmountFails(t *testing.T) {
	chain := newFakeChain()
	b := NewBuilder(BuilderParams{
		Client:     chain,
		Mint:       testMint,
		FeeAccount: testFeeWallet.PublicKey(),
		FeePayer:   solana.NewWallet().PublicKey(),
		FeeBps:     10_000, // 100%
	})

	_, err := b.Build(context.Background(), Request{
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    "25.00",
		Currency:  "USDC",
	}, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrBuildFailure)
}
