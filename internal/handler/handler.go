package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/ledger"
	"github.com/kpizzy812/sol-management/internal/middleware"
	"github.com/kpizzy812/sol-management/internal/relay"
	"github.com/kpizzy812/sol-management/internal/services"
)

// Handler carries the wired services; no hidden globals beyond the DB handle.
type Handler struct {
	DB        *gorm.DB
	Collector *services.CollectorService
	Sweeps    *services.SweepService
	Keyring   *services.Keyring
	Relay     *relay.Relay
	Builder   ledger.TxBuilder
	Cluster   string
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	// Authority-gated configuration, local access only.
	admin := r.Group("/collector", middleware.LocalOnly())
	admin.POST("/initialize", h.InitializeCollectorHandler)
	admin.POST("/destination", h.SetDestinationHandler)

	r.GET("/collector/config", h.GetConfigHandler)

	r.POST("/sweep/native", h.SweepNativeHandler)
	r.POST("/sweep/token", h.SweepTokenHandler)

	r.POST("/relay/sweep", h.RelaySweepHandler)
	r.GET("/relay/callback", h.RelayCallbackHandler)
	r.GET("/relay/:id", h.RelayStatusHandler)
	r.POST("/relay/:id/abandon", h.RelayAbandonHandler)

	r.GET("/healthz", HealthzHandler)
	r.GET("/readiness", h.ReadinessHandler)
}
