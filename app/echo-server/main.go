package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digitalMenu/app/echo-server/metrics"
	"digitalMenu/app/echo-server/router"
	"digitalMenu/business/cart"
	"digitalMenu/business/identity"
	"digitalMenu/business/orders"
	"digitalMenu/business/pricing"
	"digitalMenu/business/product"
	"digitalMenu/business/tables"
	userService "digitalMenu/business/user"
	"digitalMenu/internal/middleware"
	"digitalMenu/internal/repository/events"
	"digitalMenu/internal/repository/filecart"
	"digitalMenu/internal/repository/notification"
	psqlRepo "digitalMenu/internal/repository/postgres"
	redisRepo "digitalMenu/internal/repository/redis"
	"digitalMenu/internal/rest"
	"digitalMenu/pkg/config"
	"digitalMenu/pkg/database"
	redisClient "digitalMenu/pkg/database/redis"
	"digitalMenu/pkg/logger"
	lifecycleMetrics "digitalMenu/pkg/metrics"
	"digitalMenu/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Digital Menu", "version", cfg.App.Version, "env", cfg.App.Environment)

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected successfully")

	rdb, err := redisClient.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}
	defer redisClient.CloseRedisClient(rdb)

	var cartStorage cart.Storage
	switch cfg.Cart.Storage {
	case "file":
		fileStorage, err := filecart.New(cfg.Cart.Dir)
		if err != nil {
			logger.Fatal("Failed to prepare cart directory", "dir", cfg.Cart.Dir, "error", err)
		}
		cartStorage = fileStorage
	default:
		cartStorage = redisRepo.NewCartStorage(rdb, cfg.Cart.TTL)
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		logger.Fatal("Failed to connect event broker", "broker", cfg.Events.Broker, "error", err)
	}
	defer publisher.Close()
	logger.Info("Event publisher ready", "broker", cfg.Events.Broker)

	var mailer userService.NotificationRepository = notification.LogMailer{}
	if cfg.Mailjet.MailjetBaseUrl != "" {
		mailer = notification.NewMailjetRepository(notification.MailjetConfig{
			MailjetBaseURL:           cfg.Mailjet.MailjetBaseUrl,
			MailjetBasicAuthUsername: cfg.Mailjet.MailjetBasicAuthUsername,
			MailjetBasicAuthPassword: cfg.Mailjet.MailjetBasicAuthPassword,
			MailjetSenderEmail:       cfg.Mailjet.MailjetSenderEmail,
			MailjetSenderName:        cfg.Mailjet.MailjetSenderName,
		}, nil)
	}

	lifecycleMetrics.Init()
	metrics.Init()

	// Init repo
	userRepo := psqlRepo.NewUserRepository(db)
	productRepo := psqlRepo.NewProductRepository(db)
	ordersRepo := psqlRepo.NewOrdersRepository(db)
	tablesRepo := psqlRepo.NewTablesRepository(db)
	accountRepo := psqlRepo.NewAccountRepository(db)
	revenueRepo := psqlRepo.NewRevenueRepository(db)
	tokenRepo := redisRepo.NewTokenRepository(rdb)
	jwtManager := utils.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.TTL)

	// Init service
	userSvc := userService.NewUserService(userRepo, validator.New(), mailer, tokenRepo, jwtManager, cfg.App.AppEmailVerificationKey, cfg.App.AppDeploymentUrl)
	productSvc := product.NewProductService(productRepo)
	cartSvc := cart.NewService(cartStorage, productRepo)
	tablesSvc := tables.NewTablesService(tablesRepo, accountRepo, revenueRepo, publisher)
	ordersSvc := orders.NewOrdersService(ordersRepo, pricing.NewComposer(productRepo), tablesSvc, publisher, cartSvc)
	resolver := identity.NewResolver(jwtManager, tokenRepo, tablesSvc)

	// Init handler
	userHandler := rest.NewUserHandler(userSvc)
	productHandler := rest.NewProductHandler(productSvc)
	cartHandler := rest.NewCartHandler(cartSvc)
	ordersHandler := rest.NewOrdersHandler(ordersSvc)
	tablesHandler := rest.NewTablesHandler(tablesSvc)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(metrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			middleware.HeaderTableToken, middleware.HeaderAttachSession, middleware.HeaderDeviceID,
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": cfg.App.Version})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authRequired := middleware.Auth(resolver)
	managerOnly := middleware.ManagerOnly()
	tableSession := middleware.TableSession(resolver)

	api := e.Group("/api/v1")
	router.SetupUserRoutes(api, userHandler, authRequired)
	router.SetupProductRoutes(api, productHandler, authRequired, managerOnly)
	router.SetupCartRoutes(api, cartHandler, ordersHandler, authRequired)
	router.SetOrdersRoutes(api, ordersHandler, authRequired, managerOnly)
	router.SetTableSessionRoutes(api, ordersHandler, cartHandler, tableSession, router.TableOrderLimiter(cfg.RateLimit))
	router.SetTablesRoutes(api, tablesHandler, authRequired, managerOnly)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
