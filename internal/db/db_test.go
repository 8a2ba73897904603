package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbConn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&CollectorConfig{}, &RelayHandshake{}, &SweepReceipt{}))
	return dbConn
}

func TestCollectorConfigSingleton(t *testing.T) {
	dbConn := openTestDB(t)

	first := &CollectorConfig{LookupKey: "collector-state", Authority: "alice", ReserveLamports: 15_000_000}
	require.NoError(t, CreateCollectorConfig(dbConn, first))

	// The unique index on the lookup key rejects a second row.
	second := &CollectorConfig{LookupKey: "collector-state", Authority: "mallory", ReserveLamports: 0}
	assert.Error(t, CreateCollectorConfig(dbConn, second))

	got, err := GetCollectorConfig(dbConn, "collector-state")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Authority)
	assert.Equal(t, uint64(15_000_000), got.ReserveLamports)
}

func TestUpdateCollectorDestination(t *testing.T) {
	dbConn := openTestDB(t)
	cfg := &CollectorConfig{LookupKey: "collector-state", Authority: "alice", ReserveLamports: 15_000_000}
	require.NoError(t, CreateCollectorConfig(dbConn, cfg))

	require.NoError(t, UpdateCollectorDestination(dbConn, cfg.ID, "carol"))

	got, err := GetCollectorConfig(dbConn, "collector-state")
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Destination)
	// Only the destination column moved.
	assert.Equal(t, "alice", got.Authority)
	assert.Equal(t, uint64(15_000_000), got.ReserveLamports)
}

func TestGetCollectorConfigMissing(t *testing.T) {
	dbConn := openTestDB(t)
	_, err := GetCollectorConfig(dbConn, "collector-state")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExpirePendingHandshakes(t *testing.T) {
	dbConn := openTestDB(t)
	now := time.Now()

	stale := &RelayHandshake{HandshakeID: "stale", Status: "pending", Deadline: now.Add(-time.Minute)}
	fresh := &RelayHandshake{HandshakeID: "fresh", Status: "pending", Deadline: now.Add(time.Minute)}
	settled := &RelayHandshake{HandshakeID: "settled", Status: "success", Deadline: now.Add(-time.Minute)}
	require.NoError(t, SaveHandshake(dbConn, stale))
	require.NoError(t, SaveHandshake(dbConn, fresh))
	require.NoError(t, SaveHandshake(dbConn, settled))

	n, err := ExpirePendingHandshakes(dbConn, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := GetHandshakeByID(dbConn, "stale")
	require.NoError(t, err)
	assert.Equal(t, "unknown", got.Status)

	got, err = GetHandshakeByID(dbConn, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)

	// Settled outcomes are never rewritten by expiry.
	got, err = GetHandshakeByID(dbConn, "settled")
	require.NoError(t, err)
	assert.Equal(t, "success", got.Status)
}

func TestListUnconfirmedSuccesses(t *testing.T) {
	dbConn := openTestDB(t)
	require.NoError(t, SaveHandshake(dbConn, &RelayHandshake{HandshakeID: "a", Status: "success", Signature: "sig-a"}))
	require.NoError(t, SaveHandshake(dbConn, &RelayHandshake{HandshakeID: "b", Status: "success", Signature: "sig-b", Confirmed: true}))
	require.NoError(t, SaveHandshake(dbConn, &RelayHandshake{HandshakeID: "c", Status: "pending"}))

	hss, err := ListUnconfirmedSuccesses(dbConn)
	require.NoError(t, err)
	require.Len(t, hss, 1)
	assert.Equal(t, "a", hss[0].HandshakeID)
}
