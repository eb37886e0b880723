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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/yptunaskarya/perpus-api/api/swagger"
	"github.com/yptunaskarya/perpus-api/internal/handler"
	"github.com/yptunaskarya/perpus-api/internal/middleware"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/repository"
	"github.com/yptunaskarya/perpus-api/internal/service"
	"github.com/yptunaskarya/perpus-api/pkg/cache"
	"github.com/yptunaskarya/perpus-api/pkg/config"
	"github.com/yptunaskarya/perpus-api/pkg/database"
	"github.com/yptunaskarya/perpus-api/pkg/jobs"
	"github.com/yptunaskarya/perpus-api/pkg/logger"
	corsmiddleware "github.com/yptunaskarya/perpus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/yptunaskarya/perpus-api/pkg/middleware/requestid"
	"github.com/yptunaskarya/perpus-api/pkg/qrcode"
	"github.com/yptunaskarya/perpus-api/pkg/storage"
)

// @title Perpus API
// @version 1.0.0
// @description School library management backend
// @BasePath /api
// @schemes http

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Ambient services.
	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheEnabled := cfg.Dashboard.CacheEnabled && redisClient != nil
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	qrStore, err := storage.NewLocalStorage(cfg.QR.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init qr storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.QR.SignedURLSecret, cfg.QR.SignedURLTTL)
	qrGenerator := qrcode.NewGenerator(256)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	bookRepo := repository.NewBookRepository(db)
	itemRepo := repository.NewItemRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	foundBookRepo := repository.NewFoundBookRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// QR generation runs on a background worker pool so book creation does not
	// block on image encoding.
	qrSvc := service.NewQRService(bookRepo, qrStore, qrGenerator, logr, cfg.QR.PublicBaseURL)
	qrQueue := jobs.NewQueue("book-qr", qrSvc.HandleJob, jobs.QueueConfig{
		Workers: cfg.QR.Workers,
		Logger:  logr,
	})

	// Domain services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	bookSvc := service.NewBookService(bookRepo, cacheSvc, qrQueue, validate, logr, cfg.Library.BranchID)
	itemSvc := service.NewItemService(itemRepo, logr)
	transactionSvc := service.NewTransactionService(transactionRepo, studentRepo, cacheSvc, metricsSvc, validate, logr, service.TransactionConfig{
		DefaultLoanDays:     cfg.Library.DefaultLoanDays,
		DefaultOfficerTitle: cfg.Library.DefaultOfficerTitle,
		BranchID:            cfg.Library.BranchID,
	})
	foundBookSvc := service.NewFoundBookService(foundBookRepo, validate, logr)
	inventorySvc := service.NewInventoryService(inventoryRepo, validate, logr, cfg.Library.BranchID)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, logr)
	receiptSvc := service.NewReceiptService(transactionSvc, qrGenerator, logr, cfg.Library.SchoolName)
	exportSvc := service.NewExportService(exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
	}, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, exportSvc)
	bookHandler := handler.NewBookHandler(bookSvc, itemSvc, exportSvc)
	itemHandler := handler.NewItemHandler(itemSvc)
	transactionHandler := handler.NewTransactionHandler(transactionSvc, receiptSvc, exportSvc, authSvc)
	foundBookHandler := handler.NewFoundBookHandler(foundBookSvc)
	inventoryHandler := handler.NewInventoryHandler(inventorySvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	auditHandler := handler.NewAuditHandler(auditRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc, auditRepo, routeHandlers{
		auth:         authHandler,
		users:        userHandler,
		students:     studentHandler,
		books:        bookHandler,
		items:        itemHandler,
		transactions: transactionHandler,
		foundBooks:   foundBookHandler,
		inventory:    inventoryHandler,
		dashboard:    dashboardHandler,
		exports:      exportHandler,
		audits:       auditHandler,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	qrQueue.Start(ctx)
	defer qrQueue.Stop()

	go exportCleanupLoop(ctx, exportSvc)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

type routeHandlers struct {
	auth         *handler.AuthHandler
	users        *handler.UserHandler
	students     *handler.StudentHandler
	books        *handler.BookHandler
	items        *handler.ItemHandler
	transactions *handler.TransactionHandler
	foundBooks   *handler.FoundBookHandler
	inventory    *handler.InventoryHandler
	dashboard    *handler.DashboardHandler
	exports      *handler.ExportHandler
	audits       *handler.AuditHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, authSvc *service.AuthService, auditRepo *repository.AuditRepository, h routeHandlers) {
	staff := []models.UserRole{models.RoleAdmin, models.RoleOfficer}
	frontDesk := []models.UserRole{models.RoleAdmin, models.RoleOfficer, models.RoleIntern}
	readers := []models.UserRole{models.RoleAdmin, models.RoleOfficer, models.RoleTeacher, models.RoleIntern}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", h.auth.Login)

	// Download links are authorized by their signed token, not by a session.
	api.GET("/exports/download", h.exports.Download)

	auth := api.Group("")
	auth.Use(middleware.JWT(authSvc))

	auth.GET("/auth/profile", h.auth.Profile)

	books := auth.Group("/books")
	{
		books.GET("", h.books.List)
		books.GET("/search", h.books.Search)
		books.GET("/export", middleware.RBAC(readers...), h.books.Export)
		books.POST("/import", middleware.RBAC(staff...), h.books.Import)
		books.GET("/:id", h.books.Get)
		books.GET("/:id/items", h.books.Items)
		books.GET("/:id/availability", h.books.Availability)
		books.POST("", middleware.RBAC(staff...), h.books.Create)
		books.PUT("/:id", middleware.RBAC(staff...), h.books.Update)
		books.DELETE("/:id", middleware.RBAC(models.RoleAdmin), middleware.Audit(auditRepo, models.AuditActionBookDelete, "books"), h.books.Delete)
		books.POST("/:id/stock", middleware.RBAC(staff...), h.books.AddStock)
		books.POST("/:id/reduce", middleware.RBAC(staff...), middleware.Audit(auditRepo, models.AuditActionStockReduce, "books"), h.books.ReduceStock)
		books.POST("/:id/qr", middleware.RBAC(staff...), h.books.RegenerateQR)
	}

	auth.GET("/items/lookup", middleware.RBAC(frontDesk...), h.items.Lookup)

	students := auth.Group("/students")
	{
		students.GET("", middleware.RBAC(readers...), h.students.List)
		students.GET("/search", middleware.RBAC(frontDesk...), h.students.Search)
		students.GET("/export", middleware.RBAC(readers...), h.students.Export)
		students.POST("/import", middleware.RBAC(staff...), h.students.Import)
		students.GET("/:id", middleware.RBAC(readers...), h.students.Get)
		students.POST("", middleware.RBAC(staff...), h.students.Create)
		students.PUT("/:id", middleware.RBAC(staff...), h.students.Update)
		students.DELETE("/:id", middleware.RBAC(models.RoleAdmin), middleware.Audit(auditRepo, models.AuditActionStudentDelete, "students"), h.students.Delete)
	}

	transactions := auth.Group("/transactions")
	{
		transactions.POST("", middleware.RBAC(frontDesk...), h.transactions.Borrow)
		transactions.GET("", h.transactions.List)
		transactions.GET("/search", middleware.RBAC(frontDesk...), h.transactions.Search)
		transactions.GET("/export", middleware.RBAC(staff...), h.transactions.Export)
		transactions.GET("/receipt/:number", middleware.RBAC(frontDesk...), h.transactions.GetByReceipt)
		transactions.GET("/:id", h.transactions.Get)
		transactions.GET("/:id/receipt", middleware.RBAC(frontDesk...), h.transactions.Receipt)
		transactions.POST("/:id/return", middleware.RBAC(frontDesk...), h.transactions.Return)
		transactions.POST("/:id/resolve", middleware.RBAC(staff...), middleware.Audit(auditRepo, models.AuditActionFineResolve, "transactions"), h.transactions.ResolvePending)
	}

	foundBooks := auth.Group("/found-books")
	{
		foundBooks.POST("", middleware.RBAC(frontDesk...), h.foundBooks.Record)
		foundBooks.GET("", middleware.RBAC(frontDesk...), h.foundBooks.List)
		foundBooks.PATCH("/:id", middleware.RBAC(staff...), h.foundBooks.UpdateStatus)
	}

	inventory := auth.Group("/inventory")
	inventory.Use(middleware.RBAC(staff...))
	{
		inventory.GET("", h.inventory.List)
		inventory.GET("/:id", h.inventory.Get)
		inventory.POST("", h.inventory.Create)
		inventory.PUT("/:id", h.inventory.Update)
		inventory.DELETE("/:id", h.inventory.Delete)
		inventory.POST("/:id/movements", middleware.Audit(auditRepo, models.AuditActionInventoryMove, "inventory"), h.inventory.Move)
		inventory.GET("/:id/logs", h.inventory.Logs)
	}

	users := auth.Group("/users")
	users.Use(middleware.RBAC(models.RoleAdmin))
	{
		users.GET("", h.users.List)
		users.GET("/:id", h.users.Get)
		users.POST("", middleware.Audit(auditRepo, models.AuditActionUserCreate, "users"), h.users.Create)
		users.PUT("/:id", middleware.Audit(auditRepo, models.AuditActionUserUpdate, "users"), h.users.Update)
		users.DELETE("/:id", middleware.Audit(auditRepo, models.AuditActionUserDelete, "users"), h.users.Delete)
	}

	auth.GET("/dashboard", middleware.RBAC(readers...), h.dashboard.Summary)
	auth.GET("/dashboard/metrics", middleware.RBAC(models.RoleAdmin), h.dashboard.SystemMetrics)
	auth.GET("/audit-logs", middleware.RBAC(models.RoleAdmin), h.audits.List)
}

// exportCleanupLoop prunes expired export files until the context is cancelled.
func exportCleanupLoop(ctx context.Context, exports *service.ExportService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exports.Cleanup()
		}
	}
}
