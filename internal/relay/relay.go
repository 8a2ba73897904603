// Package relay hands unsigned transactions to an external wallet signer via
// a deep-link handshake and reconciles the asynchronous outcome. Dispatch
// returns immediately; the interval until the callback arrives is unbounded
// and no call here ever blocks on it.
package relay

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/db"
	"github.com/kpizzy812/sol-management/utils"
)

// Status is the lifecycle state of a handshake.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	// StatusUnknown means the callback carried neither a signature nor an
	// error, or the handshake expired or was abandoned. Funds may or may not
	// have moved; the caller must re-query ledger state before retrying a
	// sweep, or it risks a double sweep.
	StatusUnknown Status = "unknown"
)

// Outcome is the resolved result of one handshake.
type Outcome struct {
	Status       Status
	Signature    string
	ErrorCode    string
	ErrorMessage string
}

// Handshake is the client-side session returned by Dispatch. The one-time
// keypair is held only in memory and is simply discarded when the handshake
// is abandoned.
type Handshake struct {
	ID         string
	Source     string
	DeepLink   string
	SessionKey solana.PrivateKey
	Deadline   time.Time
}

var ErrHandshakeNotFound = errors.New("handshake not found")

// Relay dispatches unsigned transactions to the external signer.
type Relay struct {
	db           *gorm.DB
	cluster      string // "devnet" or "mainnet-beta"
	appURL       string // default metadata page shown by the signer
	redirectBase string // public base URL receiving the callback redirect
	ttl          time.Duration
}

func New(dbConn *gorm.DB, cluster, appURL, redirectBase string, ttl time.Duration) *Relay {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Relay{
		db:           dbConn,
		cluster:      cluster,
		appURL:       appURL,
		redirectBase: redirectBase,
		ttl:          ttl,
	}
}

// Dispatch serializes the unsigned transaction, generates a fresh one-time
// encryption keypair and builds the signAndSendTransaction deep link. How the
// link reaches the signer is the caller's concern (mobile redirect or a
// secondary window); a closed window is only a hint to stop a spinner, never
// proof of success. Only Resolve settles the outcome.
func (r *Relay) Dispatch(tx *solana.Transaction, source solana.PublicKey, metadataURL string) (*Handshake, error) {
	serialized, err := utils.EncodeBase58Tx(tx)
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	session := solana.NewWallet()
	id := uuid.NewString()
	redirect := fmt.Sprintf("%s/relay/callback?handshake=%s", r.redirectBase, id)
	if metadataURL == "" {
		metadataURL = r.appURL
	}

	params := url.Values{}
	params.Set("dapp_encryption_public_key", base58.Encode(session.PublicKey().Bytes()))
	params.Set("cluster", r.cluster)
	params.Set("app_url", metadataURL)
	params.Set("redirect_link", redirect)
	params.Set("transaction", serialized)

	deadline := time.Now().Add(r.ttl)
	record := &db.RelayHandshake{
		HandshakeID:   id,
		Source:        source.String(),
		EncryptionKey: base58.Encode(session.PublicKey().Bytes()),
		RedirectURL:   redirect,
		MetadataURL:   metadataURL,
		Status:        string(StatusPending),
		Deadline:      deadline,
	}
	if err := db.SaveHandshake(r.db, record); err != nil {
		return nil, fmt.Errorf("persist handshake: %w", err)
	}

	return &Handshake{
		ID:         id,
		Source:     source.String(),
		DeepLink:   "phantom://v1/signAndSendTransaction?" + params.Encode(),
		SessionKey: session.PrivateKey,
		Deadline:   deadline,
	}, nil
}

// Reconcile parses a callback payload. A signature parameter means success,
// an error code means failure, neither means unknown.
func Reconcile(params url.Values) Outcome {
	if sig := params.Get("signature"); sig != "" {
		return Outcome{Status: StatusSuccess, Signature: sig}
	}
	if code := params.Get("errorCode"); code != "" {
		return Outcome{
			Status:       StatusFailure,
			ErrorCode:    code,
			ErrorMessage: params.Get("errorMessage"),
		}
	}
	return Outcome{Status: StatusUnknown}
}

// Resolve applies a callback payload to a stored handshake. Resolution is
// idempotent: once a handshake left the pending state its outcome is fixed
// and later callbacks return the stored result unchanged.
func (r *Relay) Resolve(id string, params url.Values) (Outcome, error) {
	hs, err := db.GetHandshakeByID(r.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Outcome{}, ErrHandshakeNotFound
		}
		return Outcome{}, err
	}
	if hs.Status != string(StatusPending) {
		return storedOutcome(hs), nil
	}

	outcome := Reconcile(params)
	hs.Status = string(outcome.Status)
	hs.Signature = outcome.Signature
	hs.ErrorCode = outcome.ErrorCode
	hs.ErrorMessage = outcome.ErrorMessage
	if err := db.SaveHandshake(r.db, hs); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// Status returns the stored outcome of a handshake.
func (r *Relay) Status(id string) (*db.RelayHandshake, error) {
	hs, err := db.GetHandshakeByID(r.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHandshakeNotFound
		}
		return nil, err
	}
	return hs, nil
}

// Abandon discards a pending handshake. The outcome becomes unknown, not
// failure: the signer may still have submitted the transaction.
func (r *Relay) Abandon(id string) error {
	hs, err := db.GetHandshakeByID(r.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHandshakeNotFound
		}
		return err
	}
	if hs.Status != string(StatusPending) {
		return nil
	}
	hs.Status = string(StatusUnknown)
	hs.ErrorMessage = "abandoned by caller"
	return db.SaveHandshake(r.db, hs)
}

// ExpirePending moves pending handshakes past their deadline to unknown.
func (r *Relay) ExpirePending(now time.Time) (int64, error) {
	return db.ExpirePendingHandshakes(r.db, now)
}

func storedOutcome(hs *db.RelayHandshake) Outcome {
	return Outcome{
		Status:       Status(hs.Status),
		Signature:    hs.Signature,
		ErrorCode:    hs.ErrorCode,
		ErrorMessage: hs.ErrorMessage,
	}
}
