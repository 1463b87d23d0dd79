package wallet

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"

	"walletcore/recovery"
)

// CreateResult describes a freshly created wallet.
type CreateResult struct {
	Address string
	// QRCode is a base64-encoded PNG of the receive address.
	QRCode string
}

// CreateWallet generates a new keypair for an owner and stores it under the
// current-format owner-scoped key.
//
// Creation is refused when the owner already has a declared address: that
// identity may hold funds, and recovery or a seed phrase restore is the only
// safe path. A recovery failure must never be papered over by silently
// minting a new identity.
func (s *Service) CreateWallet(ctx context.Context, ownerID string) (*CreateResult, error) {
	declared, err := s.profiles.DeclaredAddress(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load declared address: %w", err)
	}
	if declared != "" {
		return nil, fmt.Errorf("%w: declared address %s", ErrWalletExists, declared)
	}

	account := solana.NewWallet()
	defer clear(account.PrivateKey)

	if err := recovery.WriteCurrent(ctx, s.creds, ownerID, account.PrivateKey); err != nil {
		return nil, fmt.Errorf("failed to store new credential: %w", err)
	}
	// a stale "not found" result may be cached from before creation
	s.engine.Invalidate(ownerID)

	address := account.PublicKey().String()

	qrCode, err := generateQRCode(address)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	s.log.Info().Str("owner", ownerID).Str("address", address).Msg("wallet created")

	return &CreateResult{
		Address: address,
		QRCode:  qrCode,
	}, nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
