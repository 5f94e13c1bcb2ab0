package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/gocatalog/internal/api"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// dbPinger adapts the database pool to the health check interface.
type dbPinger struct{ app *App }

func (p dbPinger) Ping(ctx context.Context) error {
	return p.app.DB.PingContext(ctx)
}

// redisPinger adapts the redis client to the health check interface.
type redisPinger struct{ app *App }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.app.Redis.Ping(ctx).Err()
}

// minioPinger checks archive bucket reachability.
type minioPinger struct{ app *App }

func (p minioPinger) Ping(ctx context.Context) error {
	bucket := p.app.Config.Minio.Bucket
	exists, err := p.app.Minio.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	return nil
}

// RunHTTPServer starts the admin HTTP server and blocks until SIGINT or
// SIGTERM, then drains in-flight requests.
func RunHTTPServer(app *App) error {
	router := api.NewRouter(api.RouterDeps{
		Sources:  app.Sources,
		Reviews:  app.Reviews,
		Registry: app.Metrics.Registry(),
		Debug:    app.Config.App.Debug,
		Health: map[string]api.Pinger{
			"database": dbPinger{app},
			"redis":    redisPinger{app},
			"minio":    minioPinger{app},
		},
	}, app.Log)

	srv := &http.Server{
		Addr:         app.Config.Server.Address,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Log.Info("HTTP server listening", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		app.Log.Info("shutting down", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	app.Log.Info("server exited")
	return nil
}
