package relay

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/db"
	"github.com/kpizzy812/sol-management/internal/ledger"
	"github.com/kpizzy812/sol-management/utils"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbConn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "relay.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&db.RelayHandshake{}))
	return dbConn
}

func newTestRelay(t *testing.T) (*Relay, *gorm.DB) {
	t.Helper()
	dbConn := openTestDB(t)
	return New(dbConn, "devnet", "https://app.example.com/sweep", "https://api.example.com", 10*time.Minute), dbConn
}

func buildSweepTx(t *testing.T, source, dest solana.PublicKey) *solana.Transaction {
	t.Helper()
	mem := ledger.NewMemoryLedger(0)
	tx, err := mem.BuildNativeSweepTx(context.Background(), source, dest, 984_995_000)
	require.NoError(t, err)
	return tx
}

func TestDispatch(t *testing.T) {
	rel, dbConn := newTestRelay(t)
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	tx := buildSweepTx(t, source, dest)

	hs, err := rel.Dispatch(tx, source, "")
	require.NoError(t, err)
	assert.NotEmpty(t, hs.ID)
	assert.NotEmpty(t, hs.SessionKey)
	assert.True(t, hs.Deadline.After(time.Now()))

	// The deep link carries the full signer contract.
	require.True(t, strings.HasPrefix(hs.DeepLink, "phantom://v1/signAndSendTransaction?"))
	params, err := url.ParseQuery(strings.TrimPrefix(hs.DeepLink, "phantom://v1/signAndSendTransaction?"))
	require.NoError(t, err)
	assert.Equal(t, "devnet", params.Get("cluster"))
	assert.Equal(t, "https://app.example.com/sweep", params.Get("app_url"))
	assert.Contains(t, params.Get("redirect_link"), "https://api.example.com/relay/callback?handshake="+hs.ID)
	assert.NotEmpty(t, params.Get("dapp_encryption_public_key"))

	// The serialized transaction round-trips and is paid by the source.
	decoded, err := utils.DecodeBase58Tx(params.Get("transaction"))
	require.NoError(t, err)
	require.NotEmpty(t, decoded.Message.AccountKeys)
	assert.Equal(t, source, decoded.Message.AccountKeys[0])

	// Dispatch persisted a pending handshake.
	stored, err := db.GetHandshakeByID(dbConn, hs.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusPending), stored.Status)
	assert.Equal(t, source.String(), stored.Source)
}

func TestDispatchUsesFreshSessionKeys(t *testing.T) {
	rel, _ := newTestRelay(t)
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()

	a, err := rel.Dispatch(buildSweepTx(t, source, dest), source, "")
	require.NoError(t, err)
	b, err := rel.Dispatch(buildSweepTx(t, source, dest), source, "")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.SessionKey.PublicKey(), b.SessionKey.PublicKey())
}

func TestReconcile(t *testing.T) {
	t.Run("signature means success", func(t *testing.T) {
		out := Reconcile(url.Values{"signature": {"5KtP3"}})
		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, "5KtP3", out.Signature)
	})

	t.Run("error code means failure", func(t *testing.T) {
		out := Reconcile(url.Values{"errorCode": {"4001"}, "errorMessage": {"user rejected"}})
		assert.Equal(t, StatusFailure, out.Status)
		assert.Equal(t, "4001", out.ErrorCode)
		assert.Equal(t, "user rejected", out.ErrorMessage)
	})

	t.Run("neither means unknown, not failure", func(t *testing.T) {
		out := Reconcile(url.Values{})
		assert.Equal(t, StatusUnknown, out.Status)
		assert.Empty(t, out.ErrorCode)
	})
}

func TestResolveIsIdempotent(t *testing.T) {
	rel, _ := newTestRelay(t)
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	hs, err := rel.Dispatch(buildSweepTx(t, source, dest), source, "")
	require.NoError(t, err)

	out, err := rel.Resolve(hs.ID, url.Values{"signature": {"sig-1"}})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)

	// A later, contradictory callback cannot overwrite the settled outcome.
	out, err = rel.Resolve(hs.ID, url.Values{"errorCode": {"4001"}})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "sig-1", out.Signature)
}

func TestResolveUnknownHandshake(t *testing.T) {
	rel, _ := newTestRelay(t)
	_, err := rel.Resolve("no-such-id", url.Values{})
	assert.ErrorIs(t, err, ErrHandshakeNotFound)
}

func TestExpirePending(t *testing.T) {
	rel, dbConn := newTestRelay(t)
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	hs, err := rel.Dispatch(buildSweepTx(t, source, dest), source, "")
	require.NoError(t, err)

	// Not expired yet.
	n, err := rel.ExpirePending(time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Past the deadline the handshake resolves to unknown, never failure.
	n, err = rel.ExpirePending(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := db.GetHandshakeByID(dbConn, hs.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusUnknown), stored.Status)
	assert.Empty(t, stored.ErrorCode)
}

func TestAbandon(t *testing.T) {
	rel, dbConn := newTestRelay(t)
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	hs, err := rel.Dispatch(buildSweepTx(t, source, dest), source, "")
	require.NoError(t, err)

	require.NoError(t, rel.Abandon(hs.ID))
	stored, err := db.GetHandshakeByID(dbConn, hs.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusUnknown), stored.Status)

	// Abandoning a settled handshake is a no-op.
	require.NoError(t, rel.Abandon(hs.ID))
	assert.ErrorIs(t, rel.Abandon("no-such-id"), ErrHandshakeNotFound)
}
