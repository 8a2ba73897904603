package db

import (
	"time"

	"gorm.io/gorm"
)

var DB *gorm.DB // 在 main 中赋值

// GetCollectorConfig loads the singleton config row by its fixed lookup key.
func GetCollectorConfig(db *gorm.DB, lookupKey string) (*CollectorConfig, error) {
	var cfg CollectorConfig
	err := db.Where("lookup_key = ?", lookupKey).First(&cfg).Error
	return &cfg, err
}

// CreateCollectorConfig inserts the singleton row. The unique index on
// lookup_key rejects a second insert.
func CreateCollectorConfig(db *gorm.DB, cfg *CollectorConfig) error {
	return db.Create(cfg).Error
}

// UpdateCollectorDestination overwrites only the destination column.
func UpdateCollectorDestination(db *gorm.DB, id uint, destination string) error {
	return db.Model(&CollectorConfig{}).Where("id = ?", id).
		Update("destination", destination).Error
}

// SaveSweepReceipt 保存 sweep 记录
func SaveSweepReceipt(db *gorm.DB, receipt *SweepReceipt) error {
	return db.Save(receipt).Error
}

func GetSweepReceiptsBySource(db *gorm.DB, source string) ([]SweepReceipt, error) {
	var receipts []SweepReceipt
	err := db.Where("source = ?", source).Find(&receipts).Error
	return receipts, err
}

func SaveHandshake(db *gorm.DB, hs *RelayHandshake) error {
	return db.Save(hs).Error
}

func GetHandshakeByID(db *gorm.DB, handshakeID string) (*RelayHandshake, error) {
	var hs RelayHandshake
	err := db.Where("handshake_id = ?", handshakeID).First(&hs).Error
	return &hs, err
}

// ListPendingHandshakes returns handshakes still awaiting a callback.
func ListPendingHandshakes(db *gorm.DB) ([]RelayHandshake, error) {
	var hss []RelayHandshake
	err := db.Where("status = ?", "pending").Find(&hss).Error
	return hss, err
}

// ListUnconfirmedSuccesses returns handshakes whose callback delivered a
// signature that has not yet been verified against the chain.
func ListUnconfirmedSuccesses(db *gorm.DB) ([]RelayHandshake, error) {
	var hss []RelayHandshake
	err := db.Where("status = ? AND confirmed = ?", "success", false).Find(&hss).Error
	return hss, err
}

// ExpirePendingHandshakes moves pending handshakes past their deadline to the
// unknown outcome. Expiry is never a failure: the signer may still have
// submitted the transaction.
func ExpirePendingHandshakes(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Model(&RelayHandshake{}).
		Where("status = ? AND deadline < ?", "pending", now).
		Update("status", "unknown")
	return res.RowsAffected, res.Error
}
