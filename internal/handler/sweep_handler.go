package handler

import (
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/kpizzy812/sol-management/internal/ledger"
	"github.com/kpizzy812/sol-management/internal/models"
	"github.com/kpizzy812/sol-management/internal/services"
	"github.com/kpizzy812/sol-management/utils"
)

func (h *Handler) SweepNativeHandler(c *gin.Context) {
	var req models.SweepNativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	source, err := solana.PublicKeyFromBase58(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source address"})
		return
	}

	// Self-authorization made concrete: without the wallet's key the service
	// cannot release its funds.
	signer, ok := h.Keyring.Signer(source)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
		return
	}

	receipt, err := h.Sweeps.CollectNative(c.Request.Context(), source, signer)
	if err != nil {
		h.sweepError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sweepResponse(receipt))
}

func (h *Handler) SweepTokenHandler(c *gin.Context) {
	var req models.SweepTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	source, err := solana.PublicKeyFromBase58(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source address"})
		return
	}
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mint address"})
		return
	}

	signer, ok := h.Keyring.Signer(source)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
		return
	}

	receipt, err := h.Sweeps.CollectToken(c.Request.Context(), source, signer, mint)
	if err != nil {
		h.sweepError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sweepResponse(receipt))
}

func (h *Handler) sweepError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
	case errors.Is(err, services.ErrCollectorNotConfigured):
		// Recoverable: the authority sets a destination, then the caller
		// retries the sweep.
		c.JSON(http.StatusConflict, gin.H{"error": "collector not configured"})
	case errors.Is(err, services.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient funds"})
	case errors.Is(err, services.ErrZeroBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "zero balance"})
	case errors.Is(err, ledger.ErrRejected):
		// Atomic ledger: nothing applied, safe to retry.
		c.JSON(http.StatusBadGateway, gin.H{"error": "ledger rejected: " + err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) sweepResponse(receipt *ledger.Receipt) models.SweepResponse {
	return models.SweepResponse{
		Signature:   receipt.Signature,
		Source:      receipt.Source,
		Destination: receipt.Destination,
		Mint:        receipt.Mint,
		Amount:      receipt.Amount,
		ExplorerURL: utils.ExplorerTxURL(receipt.Signature, h.Cluster),
	}
}
