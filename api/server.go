package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/searchsync/config"
	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/registry"
	"github.com/meghashyamc/searchsync/services/index"
	"github.com/meghashyamc/searchsync/services/search"
	"github.com/meghashyamc/searchsync/validation"
)

// Dependencies are the stores and services the HTTP surface serves. The caller owns and closes them.
type Dependencies struct {
	Registry *registry.Registry
	Records  *recorddb.Store
	Index    *searchdb.Index
	Indexer  *index.Service
	Engine   *search.Engine
}

type server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	deps       Dependencies
	validator  *validation.Validator
	logger     logger.Logger
}

// Run serves HTTP until ctx is done or the process is interrupted.
func Run(ctx context.Context, cfg *config.Config, logger logger.Logger, deps Dependencies) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	if err := s.setupDependencies(); err != nil {
		return err
	}
	s.setupRouter()
	s.setupHTTPServer()
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies() error {
	var err error
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	return nil

}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(router, s.logger, s.cfg, s.deps, s.validator)

	s.router = router
}

func (s *server) setupHTTPServer() {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	s.logger.Info("http server listening", "addr", httpServer.Addr)
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
			return
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
