// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"skillbarter/internal/cache"
	"skillbarter/internal/config"
	"skillbarter/internal/database"
	"skillbarter/internal/middleware"
	"skillbarter/internal/models"
	"skillbarter/internal/notifications"
	"skillbarter/internal/observability"
	"skillbarter/internal/push"
	"skillbarter/internal/repository"
	"skillbarter/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	dispatchInterval  = 2 * time.Second
	dispatchBatchSize = 100
	pushRetryInterval = 30 * time.Second
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	skillRepo    repository.SkillRepository
	proposalRepo repository.ProposalRepository
	teamRepo     repository.TeamRepository
	convRepo     repository.ConversationRepository
	notifRepo    repository.NotificationRepository
	outboxRepo   repository.OutboxRepository

	notifier   *notifications.Notifier
	hub        *notifications.Hub
	pushBuffer *push.Buffer
	pushSender *push.Sender
	dispatcher *service.Dispatcher

	ledgerService   *service.LedgerService
	proposalService *service.ProposalService
	teamService     *service.TeamService
	userService     *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	server, err := NewServerWithDeps(cfg, db, redisClient)
	if err != nil {
		return nil, err
	}

	// The push buffer only opens for a full server: tests run without it.
	buffer, err := push.OpenBuffer(cfg.PushBufferPath)
	if err != nil {
		return nil, fmt.Errorf("push buffer open failed: %w", err)
	}
	server.pushBuffer = buffer
	server.pushSender = push.NewSender(db, push.NewHTTPGateway(), buffer, nil)
	server.dispatcher = server.buildDispatcher()

	return server, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)
	prom := middleware.InitMetrics("skillbarter-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       repository.NewUserRepository(db),
		skillRepo:      repository.NewSkillRepository(db),
		proposalRepo:   repository.NewProposalRepository(db),
		teamRepo:       repository.NewTeamRepository(db),
		convRepo:       repository.NewConversationRepository(db),
		notifRepo:      repository.NewNotificationRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
	}

	server.ledgerService = service.NewLedgerService(db)
	server.proposalService = service.NewProposalService(db, server.proposalRepo, server.skillRepo, server.convRepo)
	server.teamService = service.NewTeamService(db, server.teamRepo, server.convRepo)
	server.userService = service.NewUserService(db, server.userRepo)

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.hub = notifications.NewHub()
	server.dispatcher = server.buildDispatcher()

	return server, nil
}

// buildDispatcher assembles the outbox dispatcher from whichever delivery
// channels are available. Interface fields are only set from non-nil
// concrete values so the dispatcher's nil checks stay meaningful.
func (s *Server) buildDispatcher() *service.Dispatcher {
	var publisher service.LivePublisher
	if s.notifier != nil {
		publisher = s.notifier
	}
	var hub service.Broadcaster
	if s.hub != nil {
		hub = s.hub
	}
	var pusher service.DevicePusher
	if s.pushSender != nil {
		pusher = s.pushSender
	}
	return service.NewDispatcher(s.outboxRepo, s.notifRepo, publisher, hub, pusher, nil)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// OpenTelemetry span per request (after requestid so the span carries it)
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Skillbarter Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/me/ledger", s.GetMyLedger)
	users.Get("/:id/skills", s.GetUserSkills)
	users.Get("/:id", s.GetUserProfile)

	// Device registration for push delivery
	devices := protected.Group("/devices")
	devices.Post("/", s.RegisterDevice)
	devices.Delete("/:id", s.RemoveDevice)

	// Skill routes
	skills := protected.Group("/skills")
	skills.Post("/", s.CreateSkill)
	skills.Get("/me", s.GetMySkills)
	skills.Get("/:id", s.GetSkill)

	// Proposal routes
	proposals := protected.Group("/proposals")
	proposals.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "submit_proposal"), s.SubmitProposal)
	proposals.Get("/incoming", s.GetIncomingProposals)
	proposals.Get("/outgoing", s.GetOutgoingProposals)
	proposals.Post("/:id/respond", s.RespondToProposal)
	proposals.Post("/:id/confirm", s.ConfirmProposalCompletion)
	proposals.Post("/:id/archive", s.ArchiveProposal)
	proposals.Delete("/:id", s.WithdrawProposal)
	proposals.Get("/:id", s.GetProposal)

	// Team routes
	teams := protected.Group("/teams")
	teams.Post("/", s.CreateTeam)
	teams.Get("/", s.GetTeams)
	teams.Get("/me", s.GetMyTeams)
	teams.Post("/:id/join", s.JoinTeam)
	teams.Post("/:id/leave", s.LeaveTeam)
	teams.Delete("/:id/members/:userId", s.RemoveTeamMember)
	teams.Post("/:id/close", s.InitiateTeamClosure)
	teams.Post("/:id/close/cancel", s.CancelTeamClosure)
	teams.Post("/:id/confirm", s.ConfirmTeamCompletion)
	teams.Delete("/:id", s.DeleteTeam)
	teams.Get("/:id", s.GetTeam)

	// Notification routes
	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Post("/:id/read", s.MarkNotificationRead)

	// Websocket endpoint for real-time notifications
	ws := api.Group("/ws", middleware.WebSocketAuthRequired)
	ws.Get("/", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Skillbarter API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			observability.RecordErrorInContext(c.UserContext(), err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the notification hub to Redis pub/sub if available
	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start hub wiring: %v", err)
			}
		}()
	}

	// Drain the outbox continuously
	go s.dispatcher.Run(s.shutdownCtx, dispatchInterval, dispatchBatchSize)

	// Retry buffered push deliveries
	if s.pushSender != nil {
		go func() {
			ticker := time.NewTicker(pushRetryInterval)
			defer ticker.Stop()
			for {
				select {
				case <-s.shutdownCtx.Done():
					return
				case <-ticker.C:
					if err := s.pushSender.RetryPending(s.shutdownCtx, 50); err != nil {
						log.Printf("push retry sweep failed: %v", err)
					}
				}
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down notification hub: %v", err)
		}
	}

	if s.pushBuffer != nil {
		if err := s.pushBuffer.Close(); err != nil {
			log.Printf("error closing push buffer: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
