package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-fees-api/api/swagger"
	"github.com/noah-isme/sma-fees-api/internal/handler"
	"github.com/noah-isme/sma-fees-api/internal/middleware"
	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/repository"
	"github.com/noah-isme/sma-fees-api/internal/service"
	"github.com/noah-isme/sma-fees-api/pkg/config"
	"github.com/noah-isme/sma-fees-api/pkg/jobs"
	"github.com/noah-isme/sma-fees-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-fees-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-fees-api/pkg/middleware/requestid"
)

type routerDeps struct {
	authSvc    *service.AuthService
	userRepo   *repository.UserRepository
	metricsSvc *service.MetricsService

	auth          *handler.AuthHandler
	users         *handler.UserHandler
	students      *handler.StudentHandler
	feeTypes      *handler.FeeTypeHandler
	feeGroups     *handler.FeeGroupHandler
	dues          *handler.DuesHandler
	discounts     *handler.DiscountHandler
	carryForwards *handler.CarryForwardHandler
	payments      *handler.PaymentHandler
	reports       *handler.ReportHandler
	announcements *handler.AnnouncementHandler
	reminders     *handler.ReminderHandler
	metrics       *handler.MetricsHandler
}

func newReportService(repo *repository.ReportRepository, payments *repository.PaymentRepository, cacheRepo *repository.CacheRepository, queue *jobs.Queue, exporter *service.ExportService, cfg *config.Config, logr *zap.Logger) *service.ReportService {
	reportCfg := service.ReportServiceConfig{
		CacheTTL:        cfg.Reports.CacheTTL,
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reminders.MaxRetries,
	}
	// A typed nil repository must not reach the cache interface.
	if cacheRepo == nil {
		return service.NewReportService(repo, payments, nil, queue, exporter, logr, reportCfg)
	}
	return service.NewReportService(repo, payments, cacheRepo, queue, exporter, logr, reportCfg)
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(deps.metricsSvc))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.auth.Login)
		auth.POST("/refresh", deps.auth.Refresh)
		auth.POST("/forgot-password", deps.auth.ForgotPassword)
		auth.POST("/reset-password", deps.auth.ResetPassword)

		protected := auth.Group("", middleware.JWT(deps.authSvc))
		protected.POST("/logout", deps.auth.Logout)
		protected.POST("/change-password", deps.auth.ChangePassword)
		protected.GET("/me", deps.auth.Me)
	}

	secured := api.Group("", middleware.JWT(deps.authSvc))

	admin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	finance := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleAccountant)
	anyStaff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleAccountant, models.RoleTeacher)

	users := secured.Group("/users", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	{
		users.GET("", deps.users.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"), deps.users.Get)
		users.POST("", middleware.Audit(deps.userRepo, "user.create", "users"), deps.users.Create)
		users.PUT("/:id", middleware.Audit(deps.userRepo, "user.update", "users"), deps.users.Update)
		users.DELETE("/:id", middleware.Audit(deps.userRepo, "user.delete", "users"), deps.users.Delete)
	}

	students := secured.Group("/students")
	{
		students.GET("", anyStaff, deps.students.List)
		students.GET("/:id", anyStaff, deps.students.Get)
		students.GET("/:id/dues", anyStaff, deps.dues.StudentDues)
		students.POST("", admin, deps.students.Create)
		students.PUT("/:id", admin, deps.students.Update)
		students.DELETE("/:id", admin, deps.students.Delete)
	}

	feeTypes := secured.Group("/fee-types")
	{
		feeTypes.GET("", anyStaff, deps.feeTypes.List)
		feeTypes.GET("/:id", anyStaff, deps.feeTypes.Get)
		feeTypes.POST("", admin, deps.feeTypes.Create)
		feeTypes.PUT("/:id", admin, deps.feeTypes.Update)
		feeTypes.DELETE("/:id", admin, deps.feeTypes.Delete)
	}

	feeGroups := secured.Group("/fee-groups")
	{
		feeGroups.GET("", anyStaff, deps.feeGroups.List)
		feeGroups.GET("/:id", anyStaff, deps.feeGroups.Get)
		feeGroups.POST("", admin, deps.feeGroups.Create)
		feeGroups.PUT("/:id", admin, deps.feeGroups.Update)
		feeGroups.DELETE("/:id", admin, deps.feeGroups.Delete)
	}

	discounts := secured.Group("/discounts")
	{
		discounts.GET("", finance, deps.discounts.List)
		discounts.GET("/:id", finance, deps.discounts.Get)
		discounts.POST("", admin, deps.discounts.Create)
		discounts.PUT("/:id", admin, deps.discounts.Update)
		discounts.DELETE("/:id", admin, deps.discounts.Delete)
		discounts.POST("/preview", finance, deps.discounts.Preview)
	}

	carryForwards := secured.Group("/carry-forwards", finance)
	{
		carryForwards.GET("", deps.carryForwards.List)
		carryForwards.GET("/:id", deps.carryForwards.Get)
		carryForwards.POST("", deps.carryForwards.Create)
		carryForwards.POST("/:id/adjust", middleware.Audit(deps.userRepo, "carry_forward.adjust", "carry_forwards"), deps.carryForwards.Adjust)
		carryForwards.POST("/:id/process", middleware.Audit(deps.userRepo, "carry_forward.process", "carry_forwards"), deps.carryForwards.Process)
		carryForwards.POST("/:id/cancel", deps.carryForwards.Cancel)
		carryForwards.POST("/bulk-process", middleware.Audit(deps.userRepo, "carry_forward.bulk_process", "carry_forwards"), deps.carryForwards.BulkProcess)
	}

	payments := secured.Group("/payments", finance)
	{
		payments.GET("", deps.payments.List)
		payments.GET("/:id", deps.payments.Get)
		payments.GET("/:id/receipt", deps.payments.Receipt)
		payments.POST("", middleware.Audit(deps.userRepo, "payment.post", "payments"), deps.payments.Post)
	}

	reports := secured.Group("/reports", finance)
	{
		reports.GET("/collection", deps.reports.Collection)
		reports.GET("/outstanding", deps.reports.Outstanding)
		reports.POST("/jobs", deps.reports.CreateJob)
		reports.GET("/jobs/:id", deps.reports.GetStatus)
		reports.GET("/export/:token", deps.reports.Download)
	}

	announcements := secured.Group("/announcements")
	{
		announcements.GET("", anyStaff, deps.announcements.List)
		announcements.GET("/:id", anyStaff, deps.announcements.Get)
		announcements.POST("", admin, deps.announcements.Create)
		announcements.PUT("/:id", admin, deps.announcements.Update)
		announcements.DELETE("/:id", admin, deps.announcements.Delete)
	}

	reminders := secured.Group("/reminders", finance)
	{
		reminders.GET("/templates", deps.reminders.ListTemplates)
		reminders.GET("/templates/:id", deps.reminders.GetTemplate)
		reminders.POST("/templates", deps.reminders.CreateTemplate)
		reminders.PUT("/templates/:id", deps.reminders.UpdateTemplate)
		reminders.DELETE("/templates/:id", deps.reminders.DeleteTemplate)
		reminders.POST("/dispatch", middleware.Audit(deps.userRepo, "reminder.dispatch", "reminders"), deps.reminders.Dispatch)
		reminders.GET("/logs", deps.reminders.ListLogs)
	}

	return r
}
