package main

import (
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"portal-backend/internal/acks"
	"portal-backend/internal/attachments"
	"portal-backend/internal/auth"
	"portal-backend/internal/bootstrap"
	"portal-backend/internal/database"
	"portal-backend/internal/exports"
	"portal-backend/internal/health"
	"portal-backend/internal/incidents"
	"portal-backend/internal/journal"
	"portal-backend/internal/metrics"
	"portal-backend/internal/middleware"
	"portal-backend/internal/models"
	"portal-backend/internal/plans"
	"portal-backend/internal/risks"
	"portal-backend/internal/xero"
)

func main() {
	log.Println("Starting portal API server")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	// Sentry first so initialization errors are captured too.
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		opts := sentry.ClientOptions{
			Dsn:         dsn,
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
			Release:     os.Getenv("SENTRY_RELEASE"),
		}
		if err := sentry.Init(opts); err != nil {
			log.Printf("Sentry initialization failed: %v", err)
		} else {
			sentry.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("service", "portal-backend")
			})
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Running database migrations...")
	if err := database.RunMigrations(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	bootstrap.Run(database.DB)

	auth.InitJWT()

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	}))
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS must run before anything that can reject OPTIONS requests.
	router.Use(cors.New(middleware.CORSConfig()))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(attachments.MaxAttachmentSize + 1<<20))

	router.GET("/health", health.HandleHealth)
	router.GET("/metrics", metrics.Handler())

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", middleware.LoginRateLimit(), auth.HandleLogin)
		authRoutes.POST("/logout", auth.HandleLogout)
		authRoutes.GET("/session", auth.Middleware(database.DB), auth.HandleGetSession)
	}

	// Monitoring systems auto-start incidents here; authenticated by the
	// shared API key instead of a session, so it sits outside the CSRF net.
	router.POST("/bcp/webhook/incident", incidents.HandleIncidentWebhook)

	// Company-scoped portal surface. Every route resolves the caller's own
	// plan; the JSON API below addresses plans by id.
	bcp := router.Group("/bcp")
	bcp.Use(auth.Middleware(database.DB), auth.RequireCSRF())
	{
		bcp.GET("/", plans.HandleGetOrCreatePlan)

		bcp.GET("/risks", risks.HandleListRisks)
		bcp.GET("/risks/export", risks.HandleExportRisksCSV)
		bcp.GET("/heatmap", risks.HandleGetHeatmap)
		editor := bcp.Group("", auth.RequireRole(models.RoleEditor))
		{
			editor.POST("/risks", risks.HandleCreateRisk)
			editor.POST("/risks/:riskId/update", risks.HandleUpdateRisk)
			editor.POST("/risks/:riskId/delete", risks.HandleDeleteRisk)
		}

		bcp.GET("/export/pdf", exports.HandleExportPDF)
		bcp.GET("/export/docx", exports.HandleExportDOCX)

		incident := bcp.Group("/incident", auth.RequireRole(models.RoleEditor))
		{
			incident.POST("/start", incidents.HandleStartIncident)
			incident.POST("/close", incidents.HandleCloseIncident)
			incident.POST("/tick/:tickId/toggle", incidents.HandleToggleTick)
			incident.POST("/event", incidents.HandleAppendEvent)
		}
		bcp.GET("/incident/console", incidents.HandleGetConsole)
		bcp.GET("/incident/events/export", incidents.HandleExportEventsCSV)

		bcp.POST("/ack", acks.HandleAcknowledge)
		bcp.GET("/ack/summary", acks.HandleGetAckSummary)
	}

	// id-addressed JSON API.
	api := router.Group("/api/bc")
	api.Use(auth.Middleware(database.DB), auth.RequireCSRF(), middleware.APIRateLimit())
	{
		api.GET("/templates", plans.HandleListTemplates)
		api.POST("/templates", auth.AdminMiddleware(), plans.HandleCreateTemplate)

		api.GET("/plans", plans.HandleListPlans)
		api.GET("/plans/current", plans.HandleGetOrCreatePlan)
		api.GET("/plans/:id", plans.HandleGetPlan)
		api.PUT("/plans/:id", auth.RequireRole(models.RoleEditor), plans.HandleUpdatePlan)
		api.POST("/plans/:id/transition", auth.RequireRole(models.RoleEditor), plans.HandleTransitionPlan)

		api.GET("/plans/:id/versions", plans.HandleListVersions)
		api.POST("/plans/:id/versions", auth.RequireRole(models.RoleEditor), plans.HandleCreateVersion)
		api.POST("/plans/:id/versions/:versionId/activate", auth.RequireRole(models.RoleEditor), plans.HandleActivateVersion)

		api.POST("/plans/:id/reviews", auth.RequireRole(models.RoleEditor), plans.HandleSubmitForReview)
		api.POST("/reviews/:id/decide", auth.RequireRole(models.RoleApprover), plans.HandleDecideReview)

		api.GET("/plans/:id/audit", plans.HandleGetAudit)

		api.GET("/plans/:id/attachments", attachments.HandleList)
		api.POST("/plans/:id/attachments", auth.RequireRole(models.RoleEditor), attachments.HandleUpload)
		api.GET("/plans/:id/attachments/:attachmentId/download", attachments.HandleDownload)
		api.DELETE("/plans/:id/attachments/:attachmentId", auth.RequireRole(models.RoleEditor), attachments.HandleDelete)

		api.POST("/plans/:id/ack", acks.HandleAcknowledge)
		api.GET("/plans/:id/ack/summary", acks.HandleGetAckSummary)

		api.GET("/plans/:id/export/pdf", exports.HandleExportPDF)
		api.GET("/plans/:id/export/docx", exports.HandleExportDOCX)
	}

	integrations := router.Group("/integrations/xero")
	integrations.Use(auth.Middleware(database.DB), auth.RequireCSRF(), auth.AdminMiddleware())
	{
		integrations.POST("/sync", xero.HandleSync)
		integrations.POST("/sync-all", xero.HandleSyncAll)
		integrations.GET("/settings", xero.HandleGetSettings)
		integrations.PUT("/settings", xero.HandleUpdateSettings)
	}

	admin := router.Group("/admin/journal")
	admin.Use(auth.Middleware(database.DB), auth.RequireCSRF(), auth.AdminMiddleware())
	{
		admin.GET("/events", journal.HandleListEvents)
		admin.GET("/events/:eventId", journal.HandleGetEvent)
		admin.POST("/events/:eventId/replay", journal.HandleReplayEvent)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
