package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-fees-api/internal/handler"
	"github.com/noah-isme/sma-fees-api/internal/repository"
	"github.com/noah-isme/sma-fees-api/internal/service"
	"github.com/noah-isme/sma-fees-api/pkg/cache"
	"github.com/noah-isme/sma-fees-api/pkg/config"
	"github.com/noah-isme/sma-fees-api/pkg/database"
	"github.com/noah-isme/sma-fees-api/pkg/export"
	"github.com/noah-isme/sma-fees-api/pkg/jobs"
	"github.com/noah-isme/sma-fees-api/pkg/logger"
	"github.com/noah-isme/sma-fees-api/pkg/storage"
)

// @title SMA Fees API
// @version 1.0.0
// @description School fee management: dues ledger, payments, discounts, carry-forward and reporting.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	feeTypeRepo := repository.NewFeeTypeRepository(db)
	feeGroupRepo := repository.NewFeeGroupRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	carryForwardRepo := repository.NewCarryForwardRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sma-fees-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	feeTypeSvc := service.NewFeeTypeService(feeTypeRepo, validate, logr)
	feeGroupSvc := service.NewFeeGroupService(feeGroupRepo, feeTypeRepo, validate, logr)
	duesSvc := service.NewDuesService(studentRepo, feeGroupRepo, feeRepo, discountRepo, carryForwardRepo, logr)
	discountSvc := service.NewDiscountService(discountRepo, studentRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)

	// Payment posting and carry-forward settlement share per-student locks.
	locks := service.NewKeyedMutex()
	receipts := export.NewReceiptRenderer(cfg.Fees.CurrencyCode)
	paymentSvc := service.NewPaymentService(paymentRepo, feeRepo, receipts, locks, cfg.Fees.ReceiptPrefix, cfg.Fees.PostingDeadline, validate, logr)
	carryForwardSvc := service.NewCarryForwardService(carryForwardRepo, feeRepo, studentRepo, locks, validate, logr)

	fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(paymentRepo, fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reminders.MaxRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 64,
		MaxRetries: cfg.Reminders.MaxRetries,
		RetryDelay: cfg.Reminders.RetryDelay,
		Logger:     logr,
	})
	reportSvc := newReportService(reportRepo, paymentRepo, cacheRepo, reportQueue, exportSvc, cfg, logr)

	reminderSvc := service.NewReminderService(templateRepo, feeRepo, studentRepo, service.NewLogGateway(logr), jobs.QueueConfig{
		Workers:    cfg.Reminders.Workers,
		BufferSize: cfg.Reminders.QueueSize,
		MaxRetries: cfg.Reminders.MaxRetries,
		RetryDelay: cfg.Reminders.RetryDelay,
		Logger:     logr,
	}, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportQueue.Start(ctx)
	defer reportQueue.Stop()
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	if cfg.Reminders.Enabled {
		reminderSvc.Start(ctx)
		defer reminderSvc.Stop()
	}

	router := buildRouter(cfg, logr, routerDeps{
		authSvc:       authSvc,
		userRepo:      userRepo,
		metricsSvc:    metricsSvc,
		auth:          handler.NewAuthHandler(authSvc),
		users:         handler.NewUserHandler(userSvc),
		students:      handler.NewStudentHandler(studentSvc),
		feeTypes:      handler.NewFeeTypeHandler(feeTypeSvc),
		feeGroups:     handler.NewFeeGroupHandler(feeGroupSvc),
		dues:          handler.NewDuesHandler(duesSvc),
		discounts:     handler.NewDiscountHandler(discountSvc),
		carryForwards: handler.NewCarryForwardHandler(carryForwardSvc),
		payments:      handler.NewPaymentHandler(paymentSvc),
		reports:       handler.NewReportHandler(reportSvc),
		announcements: handler.NewAnnouncementHandler(announcementSvc),
		reminders:     handler.NewReminderHandler(reminderSvc),
		metrics:       handler.NewMetricsHandler(metricsSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
