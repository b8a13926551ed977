package cli

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ricettario/internal/corpus"
	"ricettario/internal/metrics"
	"ricettario/internal/recipes"
	"ricettario/pkg/database"
	"ricettario/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sqlite mirror as a read-only JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.debug {
				gin.SetMode(gin.ReleaseMode)
			}
			db, err := database.OpenAndMigrate(app.Config.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &http.Server{
				Addr:              firstNonEmpty(addr, app.Config.Server.Addr),
				Handler:           newRouter(db, app.Log, app.Metrics, app.Config.Database.Path, app.Config.Corpus.Path),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, srv, app.Log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// newRouter mounts the recipe API, the raw corpus, health and metrics endpoints.
func newRouter(db *sql.DB, log logger.Logger, m *metrics.Metrics, dbPath, corpusPath string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	// avoid the "trusted all proxies" warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbPath})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// the corpus file as the static site reads it; parsed first so a bad
	// file does not silently break the UI
	router.GET("/corpus", func(c *gin.Context) {
		cp, err := corpus.Load(corpusPath)
		if err != nil {
			log.Error("Corpus unreadable", logger.String("path", corpusPath), logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "corpus unreadable"})
			return
		}
		c.JSON(http.StatusOK, cp.Recipes)
	})

	recipes.NewHandler(recipes.NewRepo(db), log).RegisterRoutes(router.Group(""))
	return router
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
