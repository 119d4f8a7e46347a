package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/perkhub/loyalty/internal/db"
	"github.com/perkhub/loyalty/internal/handlers"
	"github.com/perkhub/loyalty/internal/logger"
	"github.com/perkhub/loyalty/internal/repository/postgres"
	"github.com/perkhub/loyalty/internal/service/ledger"
	"github.com/perkhub/loyalty/internal/service/query"
	"github.com/perkhub/loyalty/internal/service/redemption"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	sweeper *redemption.Sweeper
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	ledgerService := ledger.NewService(storage, log)
	redemptionService := redemption.NewService(redemption.Config{TTL: c.RedemptionTTL}, storage, ledgerService, log)
	queryService := query.NewService(ledgerService, redemptionService)

	mux := handlers.NewRouter(
		ledgerService,
		redemptionService,
		queryService,
		log,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		sweeper:    redemption.NewSweeper(storage, log, c.SweepInterval, 0),
	}, nil
}

// Run starts the http server and the expiry sweeper, closes gracefully on
// context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}
