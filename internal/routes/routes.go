package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"deposit-reconciliation-backend/internal/config"
	handler "deposit-reconciliation-backend/internal/handlers"
	"deposit-reconciliation-backend/internal/repository"
	"deposit-reconciliation-backend/internal/services/matching"
	"deposit-reconciliation-backend/internal/services/reports"
	"deposit-reconciliation-backend/internal/services/validation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config) {
	store := repository.NewGormStore(db)

	matcher := matching.New(store, matching.Config{
		Tolerance:  cfg.MatchTolerance,
		WindowDays: cfg.MatchWindowDays,
	})
	validator := validation.New(store, cfg.MatchTolerance)
	aggregator := reports.New(store, cfg.MatchTolerance)

	reconHandler := handler.NewReconciliationHandler(store, matcher, validator, aggregator)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Reconciliation engine routes
	recon := api.Group("/reconciliation")
	recon.POST("/auto-match", reconHandler.AutoMatch)
	recon.POST("/manual-match", reconHandler.ManualMatch)
	recon.POST("/unmatch", reconHandler.Unmatch)
	recon.GET("/stats", reconHandler.Stats)
	recon.GET("/report/:date", reconHandler.DailyReport)

	// Batch routes
	batches := api.Group("/batches")
	batches.POST("", reconHandler.UpsertBatch)
	batches.GET("/:id/validate", reconHandler.ValidateBatch)
	batches.DELETE("/:id", reconHandler.DeleteBatch)

	// Import/sync collaborator upserts
	api.POST("/deposits", reconHandler.UpsertDeposit)
	api.POST("/transactions", reconHandler.UpsertTransaction)
}
