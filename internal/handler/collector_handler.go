package handler

import (
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/models"
	"github.com/kpizzy812/sol-management/internal/services"
)

func (h *Handler) InitializeCollectorHandler(c *gin.Context) {
	var req models.InitializeCollectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	authority, err := solana.PublicKeyFromBase58(req.Authority)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid authority address"})
		return
	}

	cfg, err := h.Collector.Initialize(authority)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyInitialized):
			// Not retryable; the caller should read the existing config.
			c.JSON(http.StatusConflict, gin.H{"error": "already initialized"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, configResponse(cfg.Authority, cfg.Destination, cfg.ReserveLamports))
}

func (h *Handler) SetDestinationHandler(c *gin.Context) {
	var req models.SetDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	caller, err := solana.PublicKeyFromBase58(req.Caller)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid caller address"})
		return
	}
	destination, err := solana.PublicKeyFromBase58(req.Destination)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid destination address"})
		return
	}

	cfg, err := h.Collector.SetDestination(caller, destination)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
		case errors.Is(err, services.ErrCollectorNotConfigured):
			c.JSON(http.StatusNotFound, gin.H{"error": "collector not configured"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, configResponse(cfg.Authority, cfg.Destination, cfg.ReserveLamports))
}

func (h *Handler) GetConfigHandler(c *gin.Context) {
	cfg, err := h.Collector.Config()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "collector not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, configResponse(cfg.Authority, cfg.Destination, cfg.ReserveLamports))
}

func configResponse(authority, destination string, reserve uint64) models.ConfigResponse {
	return models.ConfigResponse{
		Authority:       authority,
		Destination:     destination,
		ReserveLamports: reserve,
	}
}
