package handler

import (
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/kpizzy812/sol-management/internal/models"
	"github.com/kpizzy812/sol-management/internal/relay"
)

// RelaySweepHandler builds an unsigned sweep transaction for a wallet the
// service holds no key for and dispatches it to the external signer. The
// response carries the deep link; the outcome arrives later via the callback.
func (h *Handler) RelaySweepHandler(c *gin.Context) {
	var req models.RelaySweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	source, err := solana.PublicKeyFromBase58(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source address"})
		return
	}

	ctx := c.Request.Context()
	var (
		amount uint64
		dest   solana.PublicKey
		tx     *solana.Transaction
	)
	if req.Mint == "" {
		amount, dest, err = h.Sweeps.PrepareNativeSweep(ctx, source)
		if err == nil {
			tx, err = h.Builder.BuildNativeSweepTx(ctx, source, dest, amount)
		}
	} else {
		var mint solana.PublicKey
		mint, err = solana.PublicKeyFromBase58(req.Mint)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mint address"})
			return
		}
		amount, dest, err = h.Sweeps.PrepareTokenSweep(ctx, source, mint)
		if err == nil {
			tx, err = h.Builder.BuildTokenSweepTx(ctx, source, dest, mint, amount)
		}
	}
	if err != nil {
		h.sweepError(c, err)
		return
	}

	hs, err := h.Relay.Dispatch(tx, source, req.MetadataURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.RelayDispatchResponse{
		HandshakeID: hs.ID,
		DeepLink:    hs.DeepLink,
		Amount:      amount,
		Destination: dest.String(),
		Deadline:    hs.Deadline,
	})
}

// RelayCallbackHandler is the redirect target the external signer calls with
// either a signature or an error code. This is the only place an outcome is
// settled.
func (h *Handler) RelayCallbackHandler(c *gin.Context) {
	id := c.Query("handshake")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing handshake id"})
		return
	}

	outcome, err := h.Relay.Resolve(id, c.Request.URL.Query())
	if err != nil {
		if errors.Is(err, relay.ErrHandshakeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "handshake not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       outcome.Status,
		"signature":    outcome.Signature,
		"errorCode":    outcome.ErrorCode,
		"errorMessage": outcome.ErrorMessage,
	})
}

func (h *Handler) RelayStatusHandler(c *gin.Context) {
	hs, err := h.Relay.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, relay.ErrHandshakeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "handshake not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"handshakeId":  hs.HandshakeID,
		"source":       hs.Source,
		"status":       hs.Status,
		"signature":    hs.Signature,
		"errorCode":    hs.ErrorCode,
		"errorMessage": hs.ErrorMessage,
		"confirmed":    hs.Confirmed,
		"deadline":     hs.Deadline,
	})
}

func (h *Handler) RelayAbandonHandler(c *gin.Context) {
	if err := h.Relay.Abandon(c.Param("id")); err != nil {
		if errors.Is(err, relay.ErrHandshakeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "handshake not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unknown"})
}
