// Package restserver serves stored pixel results over HTTP.
package restserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/database"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	Store        *cache.Store
	DB           *gorm.DB
	DBEnabled    bool
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller. Results are read from
// store; when a TimescaleDB connection string is given, run summaries are
// served from the database as well.
func NewController(ctx context.Context, wg *sync.WaitGroup, store *cache.Store, sc config.ServerData, timescaleConn string, logger *zap.SugaredLogger) (*Controller, error) {
	if store == nil {
		return nil, errors.New("the REST server needs the result cache; it is disabled in this configuration")
	}
	if logger == nil {
		logger = log.GetSugaredLogger()
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: sc,
		Store:        store,
		logger:       logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}
	ctrl.serverConfig = sc

	if timescaleConn != "" {
		var err error
		ctrl.DB, err = database.CreateConnection(ctx, timescaleConn)
		if err != nil {
			return nil, fmt.Errorf("REST server could not connect to database: %v", err)
		}
		ctrl.DBEnabled = true
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server. It shuts down when the
// controller's context is cancelled.
func (c *Controller) StartController() error {
	log.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.serverConfig.Cert != "" && c.serverConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.serverConfig.Cert, c.serverConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("REST server error: %v", err)
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("REST server shutdown: %v", err)
		}
		if c.DB != nil {
			if sqlDB, err := c.DB.DB(); err == nil {
				sqlDB.Close()
			}
		}
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/pixels", c.handlers.GetPixels).Methods(http.MethodGet)
	router.HandleFunc("/pixels/{pixel}", c.handlers.GetPixel).Methods(http.MethodGet)
	router.HandleFunc("/pixels/{pixel}/annual", c.handlers.GetPixelAnnual).Methods(http.MethodGet)
	router.HandleFunc("/cache/stats", c.handlers.GetCacheStats).Methods(http.MethodGet)

	// We only enable the /runs endpoint if TimescaleDB has been configured.
	if c.DBEnabled {
		router.HandleFunc("/runs", c.handlers.GetRuns).Methods(http.MethodGet)
	}

	return router
}
