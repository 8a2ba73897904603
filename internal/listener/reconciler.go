// Package listener runs the background reconciliation loop for relay
// handshakes: expiring stale pending sessions and verifying delivered
// signatures against the chain.
package listener

import (
	"context"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/db"
	"github.com/kpizzy812/sol-management/internal/relay"
)

type Reconciler struct {
	client *rpc.Client // nil in dry-run mode: expiry still runs, confirmation is skipped
	db     *gorm.DB
	relay  *relay.Relay
}

// Start runs the reconciliation loop until ctx is cancelled.
func Start(ctx context.Context, dbConn *gorm.DB, client *rpc.Client, rel *relay.Relay, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	r := &Reconciler{client: client, db: dbConn, relay: rel}

	log.Println("relay reconciler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("relay reconciler stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	expired, err := r.relay.ExpirePending(time.Now())
	if err != nil {
		log.Printf("expire pending handshakes: %v", err)
	} else if expired > 0 {
		// Expiry resolves to unknown, never failure: the caller has to
		// re-query ledger balances before resubmitting a sweep.
		log.Printf("expired %d pending handshakes to unknown", expired)
	}

	if r.client == nil {
		return
	}
	r.confirmSuccesses(ctx)
}

// confirmSuccesses verifies callback-delivered signatures on chain and writes
// a receipt for each confirmed relayed sweep.
func (r *Reconciler) confirmSuccesses(ctx context.Context) {
	hss, err := db.ListUnconfirmedSuccesses(r.db)
	if err != nil {
		log.Printf("load unconfirmed handshakes: %v", err)
		return
	}

	for i := range hss {
		hs := &hss[i]
		sig, err := solana.SignatureFromBase58(hs.Signature)
		if err != nil {
			log.Printf("handshake %s carries malformed signature %q: %v", hs.HandshakeID, hs.Signature, err)
			hs.Status = string(relay.StatusUnknown)
			hs.ErrorMessage = "malformed callback signature"
			if err := db.SaveHandshake(r.db, hs); err != nil {
				log.Printf("save handshake %s: %v", hs.HandshakeID, err)
			}
			continue
		}

		statuses, err := r.client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			log.Printf("query signature status for %s: %v", hs.Signature, err)
			continue
		}
		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			// Not visible yet; try again next tick.
			continue
		}

		status := statuses.Value[0]
		if status.Err != nil {
			hs.Status = string(relay.StatusFailure)
			hs.ErrorCode = "chain-rejected"
			hs.ErrorMessage = "transaction failed on chain"
			log.Printf("relayed tx %s failed on chain: %v", hs.Signature, status.Err)
		} else {
			hs.Confirmed = true
			log.Printf("relayed tx %s confirmed (%v)", hs.Signature, status.ConfirmationStatus)
			r.saveRelayedReceipt(hs)
		}
		if err := db.SaveHandshake(r.db, hs); err != nil {
			log.Printf("save handshake %s: %v", hs.HandshakeID, err)
		}
	}
}

func (r *Reconciler) saveRelayedReceipt(hs *db.RelayHandshake) {
	receipt := &db.SweepReceipt{
		Source:      hs.Source,
		TXSignature: hs.Signature,
		Status:      "confirmed",
	}
	if err := db.SaveSweepReceipt(r.db, receipt); err != nil {
		log.Printf("save receipt for relayed tx %s: %v", hs.Signature, err)
	}
}
