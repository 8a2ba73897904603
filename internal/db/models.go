package db

import (
	"time"

	"gorm.io/gorm"
)

// CollectorConfig is the deployment-wide sweep configuration. Exactly one row
// exists per deployment, addressed by the fixed LookupKey, mirroring the
// on-chain collector-state account.
type CollectorConfig struct {
	gorm.Model
	LookupKey       string `gorm:"uniqueIndex;size:32"` // fixed, e.g. "collector-state"
	Authority       string `gorm:"size:44"`             // Solana 地址长度
	Destination     string `gorm:"size:44"`             // empty until the authority sets it
	ReserveLamports uint64
}

// RelayHandshake tracks one external-signer session from dispatch to outcome.
type RelayHandshake struct {
	gorm.Model
	HandshakeID   string `gorm:"uniqueIndex;size:36"`
	Source        string `gorm:"size:44"`
	EncryptionKey string `gorm:"size:44"` // one-time dapp encryption public key (base58)
	RedirectURL   string `gorm:"size:255"`
	MetadataURL   string `gorm:"size:255"`
	Status        string `gorm:"size:20;default:'pending'"` // "pending", "success", "failure", "unknown"
	Signature     string `gorm:"size:88"`
	ErrorCode     string `gorm:"size:40"`
	ErrorMessage  string `gorm:"size:255"`
	Confirmed     bool   // set once the signature is verified on chain
	Deadline      time.Time
}

// SweepReceipt records one completed asset sweep.
type SweepReceipt struct {
	gorm.Model
	Source      string `gorm:"size:44"`
	Destination string `gorm:"size:44"`
	Mint        string `gorm:"size:44"` // empty for native SOL
	Amount      uint64 // lamports, or token base units
	TXSignature string `gorm:"size:88"`
	Status      string `gorm:"size:20;default:'confirmed'"`
}
