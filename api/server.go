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
	"github.com/meghashyamc/churnsearch/config"
	"github.com/meghashyamc/churnsearch/db/kvdb"
	"github.com/meghashyamc/churnsearch/db/searchdb"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/engine"
	"github.com/meghashyamc/churnsearch/services/ingest"
	"github.com/meghashyamc/churnsearch/services/search"
	"github.com/meghashyamc/churnsearch/services/settings"
	"github.com/meghashyamc/churnsearch/services/strategy"
	"github.com/meghashyamc/churnsearch/validation"
)

type server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	kvdb       kvdb.DB
	searchdb   searchdb.DB
	engine     *engine.Engine
	strategies *search.Registry
	settings   *settings.Service
	ingest     *ingest.Service
	validator  *validation.Validator
	logger     logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.NewWithLevel(cfg.GetLogLevel()),
	}
	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	s.setupRouter()
	s.setupHTTPServer()
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies(ctx context.Context) error {
	var err error
	s.kvdb, err = kvdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.searchdb, err = searchdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating searchDB", "err", err.Error())
		s.kvdb.Close()
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		s.close()
		return err
	}

	s.engine = engine.New(ctx, s.logger, s.searchdb, s.kvdb, engine.OptionsFromConfig(s.cfg))
	s.strategies = search.NewRegistry()
	if err := s.strategies.Register(search.DefaultStrategy, s.engine); err != nil {
		s.close()
		return err
	}
	adapter, err := strategy.New(s.logger, s.strategies)
	if err != nil {
		s.close()
		return err
	}
	if err := s.strategies.Register(strategy.Name, adapter); err != nil {
		s.close()
		return err
	}

	s.settings = settings.New(s.logger, s.kvdb, s.cfg)
	s.ingest = ingest.New(ctx, s.logger, s.searchdb, s.kvdb)

	return nil

}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(router, s)

	s.router = router
}

func (s *server) setupHTTPServer() {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		s.logger.Info("starting http server", "addr", httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
}

// defaultIndex resolves the index searched when a request names none.
func (s *server) defaultIndex() string {
	return s.settings.ResolveDefaultIndex(s.searchdb.HasIndex).Index
}

func (s *server) close() {
	if err := s.kvdb.Close(); err != nil {
		s.logger.Error("error closing kvDB", "err", err.Error())
	}
	if err := s.searchdb.Close(); err != nil {
		s.logger.Error("error closing searchDB", "err", err.Error())
	}
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
			s.close()
			return
		}
		s.close()
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
