// walletctl is an operator tool against a local encrypted credential store:
// recover an owner's credential, create a wallet for an owner that has none,
// or check a transfer signature against the cluster.
// Usage: walletctl <recover|create|status> [flags]
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"walletcore/internal/client"
	"walletcore/internal/config"
	"walletcore/internal/keystore"
	"walletcore/recovery"
	"walletcore/wallet"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	var err error
	switch os.Args[1] {
	case "recover":
		err = runRecover(os.Args[2:], log)
	case "create":
		err = runCreate(os.Args[2:], log)
	case "status":
		err = runStatus(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: walletctl recover -store DIR -owner ID [-declared ADDR]")
	fmt.Fprintln(os.Stderr, "       walletctl create -store DIR -owner ID [-declared ADDR] [-qr FILE]")
	fmt.Fprintln(os.Stderr, "       walletctl status -signature SIG")
}

// staticProfiles serves the -declared flag as the owner's profile record.
type staticProfiles struct {
	address string
}

func (p staticProfiles) DeclaredAddress(context.Context, string) (string, error) {
	return p.address, nil
}

func runRecover(args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	storeDir := fs.String("store", "", "credential store directory")
	owner := fs.String("owner", "", "owner id")
	declared := fs.String("declared", "", "declared wallet address for ownership verification")
	fs.Parse(args)

	if *storeDir == "" || *owner == "" {
		return errors.New("-store and -owner are required")
	}

	passphrase, err := promptPassphrase()
	if err != nil {
		return err
	}
	defer clear(passphrase)

	store, err := keystore.NewFileStore(*storeDir, passphrase)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := recovery.NewEngine(store, recovery.WithLogger(log))
	cred, err := engine.Recover(context.Background(), *owner, *declared)
	if err != nil {
		return err
	}

	fmt.Printf("address: %s\nsource:  %s\nmigrated: %v\n", cred.Address, cred.Source, cred.FromLegacy)
	clear(cred.Key)
	return nil
}

func runCreate(args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	storeDir := fs.String("store", "", "credential store directory")
	owner := fs.String("owner", "", "owner id")
	declared := fs.String("declared", "", "declared wallet address, if the owner has one")
	qrFile := fs.String("qr", "", "write the receive-address QR code PNG to this file")
	fs.Parse(args)

	if *storeDir == "" || *owner == "" {
		return errors.New("-store and -owner are required")
	}

	passphrase, err := promptPassphrase()
	if err != nil {
		return err
	}
	defer clear(passphrase)

	store, err := keystore.NewFileStore(*storeDir, passphrase)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := createWallet(context.Background(), store, *owner, *declared, log)
	if err != nil {
		return err
	}

	fmt.Printf("address: %s\n", res.Address)
	if *qrFile != "" {
		png, err := base64.StdEncoding.DecodeString(res.QRCode)
		if err != nil {
			return fmt.Errorf("failed to decode QR code: %w", err)
		}
		if err := os.WriteFile(*qrFile, png, 0600); err != nil {
			return fmt.Errorf("failed to write QR code file: %w", err)
		}
	}
	return nil
}

// createWallet generates and stores a wallet for an owner without one. The
// declared-address guard lives in wallet.Service; a non-empty declared
// address always refuses creation.
func createWallet(ctx context.Context, store recovery.CredentialStore, owner, declared string, log zerolog.Logger) (*wallet.CreateResult, error) {
	svc := wallet.New(wallet.Params{
		Engine:   recovery.NewEngine(store, recovery.WithLogger(log)),
		Creds:    store,
		Profiles: staticProfiles{address: declared},
		Logger:   &log,
	})
	return svc.CreateWallet(ctx, owner)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	signature := fs.String("signature", "", "transaction signature to query")
	fs.Parse(args)

	if *signature == "" {
		return errors.New("-signature is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rpcClient, err := client.New(cfg.SolanaRPCURL, cfg.TokenMint)
	if err != nil {
		return err
	}

	sig, err := solana.SignatureFromBase58(*signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	status, err := rpcClient.SignatureStatus(context.Background(), sig)
	if err != nil {
		return err
	}

	switch {
	case !status.Found:
		fmt.Println("status: unknown to the cluster")
	case status.Err != nil:
		fmt.Printf("status: failed (%v)\n", status.Err)
	case status.Confirmations > 0 || status.Finalized:
		fmt.Printf("status: confirmed (confirmations=%d finalized=%v)\n", status.Confirmations, status.Finalized)
	default:
		fmt.Println("status: pending")
	}
	return nil
}

// promptPassphrase reads the store passphrase without echoing.
func promptPassphrase() ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run interactively to enter the passphrase")
	}
	fmt.Fprint(os.Stderr, "Enter store passphrase: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}
	return raw, nil
}
