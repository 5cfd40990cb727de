package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopmart/internal/config"
	"shopmart/internal/email"
	"shopmart/internal/events"
	custommiddleware "shopmart/internal/middleware"
	"shopmart/internal/repository"
	"shopmart/internal/service"
	"shopmart/internal/sms"
	"shopmart/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        *sql.DB
	redis     *redis.Client
	publisher events.Publisher
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	// Basic middleware stack
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	if redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: 100,
			Window:            time.Minute,
			KeyPrefix:         "ratelimit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Event publisher; a nop when no brokers are configured
	var publisher events.Publisher
	if cfg.Kafka.Brokers != "" {
		publisher = events.NewProducer(strings.Split(cfg.Kafka.Brokers, ","), logger)
	} else {
		publisher = events.NopPublisher{}
	}

	// Outbound senders
	var smsSender sms.Sender
	if cfg.SMS.Provider == "twilio" {
		smsSender = sms.NewTwilioSender(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From)
	} else {
		smsSender = sms.NewLogSender(logger)
	}

	var emailSender email.Sender
	if cfg.SMTP.Provider == "smtp" {
		emailSender = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		emailSender = email.NewLogSender(logger)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	smsCodeRepo := repository.NewSMSCodeRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	importJobRepo := repository.NewImportJobRepository(db)

	// Initialize services
	userService := service.NewUserService(
		userRepo, refreshTokenRepo, smsCodeRepo,
		smsSender, emailSender, publisher, redisClient, logger,
		cfg.JWT.Secret,
	)
	catalogService := service.NewCatalogService(productRepo, categoryRepo)
	cartService := service.NewCartService(cartRepo, productRepo, orderRepo, publisher)
	reportService := service.NewReportService(purchaseRepo)
	importService := service.NewImportService(
		productRepo, categoryRepo, importJobRepo, publisher, logger,
		importDelimiter(cfg.Import.Delimiter),
	)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(catalogService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)
	importHandler := transport.NewImportHandler(importService, reportService, importJobRepo, logger)

	// Route guards
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	verifiedMiddleware := custommiddleware.RequireVerified(logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router)
	cartHandler.RegisterRoutes(router, authMiddleware, verifiedMiddleware)
	importHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}

// importDelimiter maps the configured delimiter string onto a rune,
// with names for the delimiters that are awkward in env files
func importDelimiter(raw string) rune {
	switch raw {
	case "", ",":
		return ','
	case "tab", "\t":
		return '\t'
	case "semicolon", ";":
		return ';'
	default:
		return rune(raw[0])
	}
}
