package services

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/db"
)

const (
	// ConfigLookupKey addresses the singleton config row, mirroring the
	// on-chain PDA seed of the collector program.
	ConfigLookupKey = "collector-state"

	// DefaultReserveLamports is the protocol-default native reserve left in a
	// source account after a sweep (0.015 SOL).
	DefaultReserveLamports uint64 = 15_000_000
)

// CollectorService manages the deployment-wide CollectorConfig. The config is
// always reloaded from the store; no client-side copy is kept across calls.
type CollectorService struct {
	db             *gorm.DB
	defaultReserve uint64
}

func NewCollectorService(dbConn *gorm.DB, defaultReserve uint64) *CollectorService {
	if defaultReserve == 0 {
		defaultReserve = DefaultReserveLamports
	}
	return &CollectorService{db: dbConn, defaultReserve: defaultReserve}
}

// Initialize creates the singleton config with the given authority, an unset
// destination and the default reserve. A second call fails with
// ErrAlreadyInitialized and leaves the first config untouched; there is no
// update-in-place path.
func (s *CollectorService) Initialize(authority solana.PublicKey) (*db.CollectorConfig, error) {
	if _, err := db.GetCollectorConfig(s.db, ConfigLookupKey); err == nil {
		return nil, ErrAlreadyInitialized
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cfg := &db.CollectorConfig{
		LookupKey:       ConfigLookupKey,
		Authority:       authority.String(),
		Destination:     "",
		ReserveLamports: s.defaultReserve,
	}
	if err := db.CreateCollectorConfig(s.db, cfg); err != nil {
		// Lost the race against a concurrent initialize: the unique index on
		// the lookup key rejected the insert.
		if _, lookupErr := db.GetCollectorConfig(s.db, ConfigLookupKey); lookupErr == nil {
			return nil, ErrAlreadyInitialized
		}
		return nil, err
	}
	return cfg, nil
}

// SetDestination overwrites the collector destination. Only the configured
// authority may call it; the authority itself can never be changed.
func (s *CollectorService) SetDestination(caller, destination solana.PublicKey) (*db.CollectorConfig, error) {
	cfg, err := db.GetCollectorConfig(s.db, ConfigLookupKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCollectorNotConfigured
		}
		return nil, err
	}
	if err := RequireAuthority(cfg, caller); err != nil {
		return nil, err
	}
	if err := db.UpdateCollectorDestination(s.db, cfg.ID, destination.String()); err != nil {
		return nil, err
	}
	cfg.Destination = destination.String()
	return cfg, nil
}

// Config returns the current configuration, freshly loaded.
func (s *CollectorService) Config() (*db.CollectorConfig, error) {
	return db.GetCollectorConfig(s.db, ConfigLookupKey)
}
