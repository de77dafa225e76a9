package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/x11host/internal/api/http"
	"github.com/GriffinCanCode/x11host/internal/api/middleware"
	"github.com/GriffinCanCode/x11host/internal/api/ws"
	"github.com/GriffinCanCode/x11host/internal/bootstrap"
	"github.com/GriffinCanCode/x11host/internal/home"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/config"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/x11host/internal/lifecycle"
	"github.com/GriffinCanCode/x11host/internal/native"
	"github.com/GriffinCanCode/x11host/internal/shared/paths"
	"github.com/GriffinCanCode/x11host/internal/terminal"
)

const shutdownTimeout = 5 * time.Second

// Server wires the supervisor components together
type Server struct {
	config      *config.Config
	logger      *logging.Logger
	metrics     *monitoring.Metrics
	permission  home.PermissionChecker
	sessions    *terminal.Manager
	bridge      *native.Bridge
	hub         *ws.Hub
	coordinator *lifecycle.Coordinator
	router      *gin.Engine
}

// New builds every component from cfg
func New(cfg *config.Config, logger *logging.Logger, version string) (*Server, error) {
	logger.Info("Initializing x11host",
		zap.String("version", version),
		zap.String("private_root", cfg.Paths.PrivateRoot),
		zap.String("shared_root", cfg.Paths.SharedRoot),
		zap.String("native_mode", cfg.Native.Mode),
		zap.String("permission_mode", cfg.Permission.Mode),
	)

	metrics := monitoring.NewMetrics()
	layout := paths.NewLayout(cfg.Paths.PrivateRoot)

	extractor := bootstrap.New(bootstrap.FromFile(cfg.Bootstrap.ArchivePath), layout, bootstrap.Options{
		FixExecBits: cfg.Bootstrap.FixExecBits,
		Logger:      logger,
		Metrics:     metrics,
	})

	permission, err := newPermission(cfg.Permission, cfg.Paths.SharedRoot)
	if err != nil {
		return nil, err
	}
	resolver := home.NewResolver(permission, cfg.Paths.SharedRoot, cfg.Paths.PrivateRoot)

	// the hub reports status, so the manager is given a forwarding reporter
	// and the hub is attached once it exists
	var hub *ws.Hub
	status := terminal.StatusFunc(func(st terminal.Status) {
		logger.Info("Terminal status", zap.String("kind", string(st.Kind)), zap.String("message", st.Message))
		if hub != nil {
			hub.Report(st)
		}
	})
	sessions := terminal.NewManager(resolver, terminal.PTYLauncher{}, layout, sessionConfig(cfg.Session), terminal.Options{
		Status:  status,
		Logger:  logger,
		Metrics: metrics,
	})
	hub = ws.NewHub(sessions, logger)

	server, err := newNativeServer(cfg.Native, logger)
	if err != nil {
		return nil, err
	}
	bridge := native.NewBridge(server, logger, metrics)

	coordinator := lifecycle.New(lifecycle.Deps{
		Extractor:  extractor,
		Sessions:   sessions,
		Native:     bridge,
		Permission: permission,
		Requester:  home.NewCommandRequester(cfg.Permission.RequestCommand, logger),
		Cursor:     hub,
	}, lifecycle.Options{
		StopNativeOnDestroy: cfg.Native.StopOnDestroy,
		Logger:              logger,
		Metrics:             metrics,
	})

	s := &Server{
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		permission:  permission,
		sessions:    sessions,
		bridge:      bridge,
		hub:         hub,
		coordinator: coordinator,
	}
	s.router = s.newRouter(version)

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) newRouter(version string) *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.logger))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// the websocket is long lived and exempt from request rate limits
	router.GET("/terminal", s.hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	api := router.Group("/")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: s.config.Control.RequestsPerSecond,
		Burst:             s.config.Control.Burst,
	}))
	apihttp.NewHandlers(s.coordinator, s.sessions, s.bridge, s.permission, s.hub, version).Register(api)

	return router
}

// Coordinator returns the lifecycle coordinator
func (s *Server) Coordinator() *lifecycle.Coordinator {
	return s.coordinator
}

// Handler returns the control API handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the coordinator and, when enabled, the control API. It
// returns after the coordinator has handled Destroyed or ctx has ended.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.coordinator.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if s.config.Control.Enabled {
		srv := &http.Server{
			Addr:              s.config.Control.Addr,
			Handler:           s.router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			s.logger.Info("Starting control API", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("control API: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-s.coordinator.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close flushes the logger
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.logger.Sync()
	return nil
}

func newPermission(cfg config.PermissionConfig, sharedRoot string) (home.PermissionChecker, error) {
	switch cfg.Mode {
	case config.PermissionProbe:
		return home.NewProbePermission(sharedRoot), nil
	case config.PermissionGranted:
		return home.NewStaticPermission(true), nil
	case config.PermissionDenied:
		return home.NewStaticPermission(false), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownPermissionMode, cfg.Mode)
	}
}

func newNativeServer(cfg config.NativeConfig, logger *logging.Logger) (native.Server, error) {
	switch cfg.Mode {
	case config.NativeProcess:
		return native.NewProcessServer(native.ProcessConfig{
			Binary:           cfg.Binary,
			Args:             cfg.Args,
			RelaunchFailures: cfg.RelaunchFailures,
			RelaunchCooldown: cfg.RelaunchCooldownDuration(),
		}, logger), nil
	case config.NativeLoop:
		return native.NewLoopServer(native.FrameInterval, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownNativeMode, cfg.Mode)
	}
}

func sessionConfig(cfg config.SessionConfig) terminal.Config {
	return terminal.Config{
		Shell:      cfg.Shell,
		SystemPath: cfg.SystemPath,
		Term:       cfg.Term,
		Lang:       cfg.Lang,
		Scrollback: cfg.Scrollback,
		Cols:       cfg.Cols,
		Rows:       cfg.Rows,
	}
}
