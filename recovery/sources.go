package recovery

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	bip39 "github.com/tyler-smith/go-bip39"
)

// Source describes one historical credential storage location. Scoped sources
// use keys that embed the owner id, so material found there is trusted to
// belong to that owner. Global sources are shared across users on the device
// and their material must pass ownership verification before use.
type Source struct {
	Name   string
	Scoped bool
	Legacy bool
	Key    func(ownerID string) string
	Decode func(raw []byte) (solana.PrivateKey, error)
}

const currentKeyPrefix = "wallet.v2."

// CurrentKey returns the current-format owner-scoped storage key. Accepted
// legacy credentials are migrated under this key.
func CurrentKey(ownerID string) string {
	return currentKeyPrefix + ownerID
}

// DefaultSources is the authoritative scan priority order. First accepted
// match wins; reordering this list changes the acceptance policy.
var DefaultSources = []Source{
	{
		Name:   "current",
		Scoped: true,
		Key:    CurrentKey,
		Decode: decodeBase58Key,
	},
	{
		Name:   "legacy-device",
		Legacy: true,
		Key:    func(string) string { return "wallet.device" },
		Decode: decodeFlexibleKey,
	},
	{
		Name:   "legacy-owner",
		Scoped: true,
		Legacy: true,
		Key:    func(ownerID string) string { return "wallet.v1." + ownerID },
		Decode: decodeJSONKey,
	},
	{
		Name:   "generic-kv",
		Legacy: true,
		Key:    func(string) string { return "secret_key" },
		Decode: decodeFlexibleKey,
	},
	{
		Name:   "shared-mnemonic",
		Legacy: true,
		Key:    func(string) string { return "wallet.mnemonic" },
		Decode: decodeMnemonic,
	},
	{
		Name:   "owner-mnemonic",
		Scoped: true,
		Legacy: true,
		Key:    func(ownerID string) string { return "wallet.mnemonic." + ownerID },
		Decode: decodeMnemonic,
	},
}

// decodeBase58Key parses the canonical format: base58 of the full 64-byte key.
func decodeBase58Key(raw []byte) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("invalid base58 private key: %w", err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(key))
	}
	return key, nil
}

// decodeJSONKey parses the solana-keygen style JSON byte array, the format
// older app versions wrote to owner-scoped storage.
func decodeJSONKey(raw []byte) (solana.PrivateKey, error) {
	var bytes []byte
	if err := json.Unmarshal(raw, &bytes); err != nil {
		// []byte unmarshals base64 strings; byte arrays need []int
		var ints []int
		if err := json.Unmarshal(raw, &ints); err != nil {
			return nil, fmt.Errorf("invalid JSON key material: %w", err)
		}
		bytes = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, errors.New("JSON key material byte out of range")
			}
			bytes[i] = byte(v)
		}
	}
	if len(bytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(bytes))
	}
	return solana.PrivateKey(bytes), nil
}

// decodeFlexibleKey accepts either encoding. Shared-device and generic
// key-value slots were written by several app generations.
func decodeFlexibleKey(raw []byte) (solana.PrivateKey, error) {
	if key, err := decodeBase58Key(raw); err == nil {
		return key, nil
	}
	return decodeJSONKey(raw)
}

// decodeMnemonic derives a keypair from a stored BIP39 phrase using the
// standard Solana path m/44'/501'/0'/0'.
func decodeMnemonic(raw []byte) (solana.PrivateKey, error) {
	phrase := strings.Join(strings.Fields(string(raw)), " ")
	if !bip39.IsMnemonicValid(phrase) {
		return nil, errors.New("invalid mnemonic phrase")
	}
	seed := bip39.NewSeed(phrase, "")
	defer clear(seed)
	return deriveFromSeed(seed)
}

// solanaDerivationPath is m/44'/501'/0'/0', all segments hardened.
var solanaDerivationPath = []uint32{44, 501, 0, 0}

// deriveFromSeed performs SLIP-0010 ed25519 derivation over a BIP39 seed.
func deriveFromSeed(seed []byte) (solana.PrivateKey, error) {
	key, chainCode := hmacSHA512([]byte("ed25519 seed"), seed)

	for _, segment := range solanaDerivationPath {
		index := segment | 0x80000000 // hardened
		data := make([]byte, 0, 1+32+4)
		data = append(data, 0x00)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, index)
		key, chainCode = hmacSHA512(chainCode, data)
	}

	priv := ed25519.NewKeyFromSeed(key)
	clear(key)
	clear(chainCode)
	return solana.PrivateKey(priv), nil
}

func hmacSHA512(key, data []byte) (left, right []byte) {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}
