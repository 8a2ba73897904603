package services

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeyring(t *testing.T) {
	a := solana.NewWallet()
	b := solana.NewWallet()

	kr, err := LoadKeyring([]string{a.PrivateKey.String(), b.PrivateKey.String()})
	require.NoError(t, err)
	assert.Equal(t, 2, kr.Len())
	assert.Len(t, kr.Addresses(), 2)

	signer, ok := kr.Signer(a.PublicKey())
	require.True(t, ok)
	assert.Equal(t, a.PublicKey(), signer.PublicKey())

	_, ok = kr.Signer(solana.NewWallet().PublicKey())
	assert.False(t, ok)
}

func TestLoadKeyringRejectsBadSecrets(t *testing.T) {
	_, err := LoadKeyring([]string{""})
	assert.Error(t, err)

	_, err = LoadKeyring([]string{"not-base58-!!!"})
	assert.Error(t, err)
}

func TestLoadKeyringEmpty(t *testing.T) {
	kr, err := LoadKeyring(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, kr.Len())
}
