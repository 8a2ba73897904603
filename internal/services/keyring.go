package services

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// Keyring holds the private keys of wallets this service manages, keyed by
// address. Secrets are loaded once at startup from config (base58 only, like
// the payer key). A sweep of a wallet the keyring does not hold cannot be
// self-signed and is rejected as unauthorized.
type Keyring struct {
	keys map[solana.PublicKey]solana.PrivateKey
}

// LoadKeyring parses base58-encoded wallet secrets.
func LoadKeyring(secrets []string) (*Keyring, error) {
	keys := make(map[solana.PublicKey]solana.PrivateKey, len(secrets))
	for _, secret := range secrets {
		if secret == "" {
			return nil, errors.New("empty wallet secret in config")
		}
		pk, err := solana.PrivateKeyFromBase58(secret)
		if err != nil {
			return nil, errors.New("failed to parse wallet secret as base58: " + err.Error())
		}
		keys[pk.PublicKey()] = pk
	}
	return &Keyring{keys: keys}, nil
}

// Signer returns the private key for owner, if held.
func (k *Keyring) Signer(owner solana.PublicKey) (solana.PrivateKey, bool) {
	pk, ok := k.keys[owner]
	return pk, ok
}

// Addresses lists the managed wallet addresses.
func (k *Keyring) Addresses() []string {
	out := make([]string, 0, len(k.keys))
	for pub := range k.keys {
		out = append(out, pub.String())
	}
	return out
}

func (k *Keyring) Len() int {
	return len(k.keys)
}
