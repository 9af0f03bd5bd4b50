package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-docs-api/internal/handler"
	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/config"
)

type routes struct {
	tokens       *service.TokenService
	audit        *repository.AuditRepository
	requirements *handler.RequirementHandler
	documents    *handler.DocumentHandler
	reviews      *handler.ReviewHandler
	compliance   *handler.ComplianceHandler
	metrics      *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routes) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// The signed token is the credential here so the link can be handed to the review assistant.
	api.GET("/documents/:id/download", middleware.Audit(h.audit, models.AuditActionDocumentDownload, "document"), h.documents.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(h.tokens))

	admins := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)
	ownerOrStaff := middleware.RBAC(middleware.RoleSelf, string(models.RoleAdmin), string(models.RoleSuperAdmin), string(models.RoleTeacher))
	ownerOrAdmin := middleware.RBAC(middleware.RoleSelf, string(models.RoleAdmin), string(models.RoleSuperAdmin))

	requirements := secured.Group("/requirements")
	requirements.GET("", h.requirements.List)
	requirements.GET("/:id", h.requirements.Get)
	requirements.POST("", admins, h.requirements.Create)
	requirements.PUT("/:id", admins, h.requirements.Update)
	requirements.DELETE("/:id", admins, h.requirements.Delete)

	students := secured.Group("/students/:studentId")
	students.POST("/documents", ownerOrAdmin, h.documents.Upload)
	students.GET("/documents", ownerOrStaff, h.documents.List)
	students.GET("/compliance", ownerOrStaff, h.compliance.View)
	students.GET("/compliance/summary", ownerOrStaff, h.compliance.Summary)
	students.GET("/compliance/alerts", ownerOrStaff, h.compliance.Alerts)
	students.GET("/compliance/export", ownerOrStaff, h.compliance.Export)

	secured.GET("/compliance/overview", staff, h.compliance.Overview)

	documents := secured.Group("/documents/:id")
	documents.GET("/download-url", h.documents.DownloadURL)
	documents.DELETE("", middleware.RequireRoles(models.RoleStudent), h.documents.Withdraw)
	documents.POST("/review", staff, h.reviews.Review)
	documents.GET("/suggestion", staff, h.reviews.Suggestion)
	documents.POST("/suggestion/apply", staff, h.reviews.ApplySuggestion)
}
