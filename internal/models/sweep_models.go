package models

import "time"

// InitializeCollectorRequest creates the deployment singleton.
type InitializeCollectorRequest struct {
	Authority string `json:"authority" binding:"required"` // base58 地址
}

// SetDestinationRequest updates the collector destination (authority only).
type SetDestinationRequest struct {
	Caller      string `json:"caller" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// ConfigResponse is the read-only configuration projection.
type ConfigResponse struct {
	Authority       string `json:"authority"`
	Destination     string `json:"destination"` // empty until set
	ReserveLamports uint64 `json:"reserveLamports"`
}

// SweepNativeRequest sweeps a managed wallet's SOL.
type SweepNativeRequest struct {
	Source string `json:"source" binding:"required"`
}

// SweepTokenRequest sweeps a managed wallet's full balance of one mint.
type SweepTokenRequest struct {
	Source string `json:"source" binding:"required"`
	Mint   string `json:"mint" binding:"required"`
}

// SweepResponse reports one applied sweep.
type SweepResponse struct {
	Signature   string `json:"signature"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Mint        string `json:"mint,omitempty"`
	Amount      uint64 `json:"amount"`
	ExplorerURL string `json:"explorerUrl"`
}

// RelaySweepRequest dispatches an externally-signed sweep. Mint empty means a
// native sweep.
type RelaySweepRequest struct {
	Source      string `json:"source" binding:"required"`
	Mint        string `json:"mint"`
	MetadataURL string `json:"metadataUrl"`
}

// RelayDispatchResponse hands the deep link back to the caller.
type RelayDispatchResponse struct {
	HandshakeID string    `json:"handshakeId"`
	DeepLink    string    `json:"deepLink"`
	Amount      uint64    `json:"amount"`
	Destination string    `json:"destination"`
	Deadline    time.Time `json:"deadline"`
}
