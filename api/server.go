package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"listingwatch/config"
	"listingwatch/orchestrator"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(runner *orchestrator.Runner, cfg config.Config, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; request logging stays off to reduce verbosity
	r.Use(gin.Recovery())

	RegisterHealthRoutes(r, runner)
	RegisterRunRoutes(r, runner, logger)
	RegisterLedgerRoutes(r, cfg, logger)
	RegisterClassifyRoutes(r, runner)
	RegisterMetricsRoutes(r)
	return r
}

// Server is the serve-mode HTTP server plus its cron schedule
type Server struct {
	runner     *orchestrator.Runner
	httpServer *http.Server
	cron       *cron.Cron
	cronID     cron.EntryID
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewServer creates a server listening on port
func NewServer(runner *orchestrator.Runner, handler http.Handler, port string, logger *zap.Logger) *Server {
	return &Server{
		runner: runner,
		cron:   cron.New(),
		logger: logger.Named("server"),
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves HTTP in the background. Listen errors are sent on the returned channel.
func (s *Server) Start() <-chan error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// StartCron schedules automated runs. A tick that lands on a running pass is skipped.
func (s *Server) StartCron(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(schedule, s.cronTick)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cronID = id
	s.cron.Start()
	s.logger.Info("Cron job started", zap.String("schedule", schedule))
	return nil
}

func (s *Server) cronTick() {
	s.logger.Info("Cron triggered: starting monitor run")
	if _, err := s.runner.Run(context.Background(), orchestrator.RunOptions{}); err != nil {
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			s.logger.Info("Cron skipped: a run is already in progress")
			return
		}
		s.logger.Error("Cron run failed", zap.Error(err))
	}
}

// NextRun reports when the cron job fires next, zero when none is scheduled
func (s *Server) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cronID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.cronID).Next
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	// Stop cron and wait for a running job
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	return s.httpServer.Shutdown(ctx)
}
