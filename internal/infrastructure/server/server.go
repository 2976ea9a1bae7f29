package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/scriptgate/scriptgate/internal/api/http"
	"github.com/scriptgate/scriptgate/internal/api/middleware"
	"github.com/scriptgate/scriptgate/internal/api/ws"
	"github.com/scriptgate/scriptgate/internal/infrastructure/config"
	"github.com/scriptgate/scriptgate/internal/infrastructure/monitoring"
	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/notify"
	"github.com/scriptgate/scriptgate/internal/queue"
	"github.com/scriptgate/scriptgate/internal/sandbox"
	"github.com/scriptgate/scriptgate/internal/validator"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router    *gin.Engine
	validator *validator.Validator
	queue     *queue.Queue
	executor  *sandbox.Executor
	notifier  *notify.Notifier
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// completionSink reports a finished run to the queue and then to the
// run-record collaborator, in that order: the slot must be freed before
// anyone learns the run is done.
type completionSink struct {
	queue    *queue.Queue
	notifier *notify.Notifier
}

func (s *completionSink) OnCompletion(runID string) {
	s.queue.OnCompletion(runID)
	s.notifier.RunCompleted(runID, s.queue.Stats())
}

// NewServer creates a server instance from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing scriptgate server",
		zap.String("port", cfg.Server.Port),
		zap.Int("running_capacity", cfg.Queue.RunningCapacity),
		zap.Int("queued_capacity", cfg.Queue.QueuedCapacity),
	)

	metrics := monitoring.NewMetrics()

	// Validator rule tables are frozen here, before any request can
	// reach them.
	vcfg := validator.Config{
		MaxScriptLength:  cfg.Validator.MaxScriptLength,
		MaxStatements:    cfg.Validator.MaxStatements,
		MaxStringLiteral: cfg.Validator.MaxStringLiteral,
	}
	if cfg.Validator.RulesFile != "" {
		rf, err := validator.LoadRulesFile(cfg.Validator.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load validator rules: %w", err)
		}
		vcfg = vcfg.WithRules(rf)
		logger.Info("Loaded validator rules file", zap.String("path", cfg.Validator.RulesFile))
	}
	v, err := validator.New(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}

	executor := sandbox.NewExecutor(sandbox.Config{
		Timeout:       time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		EnableConsole: cfg.Sandbox.EnableConsole,
	}, logger.Named("sandbox"))

	q := queue.New(queue.Config{
		RunningCapacity: cfg.Queue.RunningCapacity,
		QueuedCapacity:  cfg.Queue.QueuedCapacity,
	}, executor, logger.Named("queue")).WithMetrics(metrics)

	notifier := notify.New(notify.Config{
		WebhookURL: cfg.Notify.WebhookURL,
		MaxRetries: cfg.Notify.MaxRetries,
	}, logger.Named("notify"))
	if notifier.Enabled() {
		logger.Info("Outcome webhooks enabled", zap.String("url", cfg.Notify.WebhookURL))
	}

	executor.SetCompleter(&completionSink{queue: q, notifier: notifier})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(v, q, notifier, metrics, logger.Named("http"))
	wsHandler := ws.NewHandler(q, metrics, logger.Named("ws"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Validation boundary
	router.POST("/validate", handlers.ValidateScript)

	// Execution admission boundary
	router.POST("/runs", handlers.SubmitRun)
	router.GET("/queue/stats", handlers.QueueStats)

	// Live stats stream
	router.GET("/stream", wsHandler.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		validator: v,
		queue:     q,
		executor:  executor,
		notifier:  notifier,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close flushes buffered log entries. In-flight runs are abandoned;
// queue state is process-lifetime only and rebuilt empty on restart.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.logger.Sync()
	return nil
}
