package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fizic37/delcampe-ebay/internal/api/handlers"
	"github.com/fizic37/delcampe-ebay/internal/api/middleware"
	"github.com/fizic37/delcampe-ebay/internal/engine"
	"github.com/fizic37/delcampe-ebay/internal/notify"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and token keep-alive scheduler",
		RunE:  runServe,
	}
}

// newNotifier returns the Discord notifier when configured.
func newNotifier(a *app) notify.Notifier {
	d := a.cfg.Notifications.Discord
	if !d.Enabled {
		return notify.NewNoOpNotifier(a.log)
	}
	a.log.Info("keep-alive failures reported to discord")
	return notify.NewDiscordNotifier(d.WebhookURL, notify.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
}

func runServe(c *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.log

	e := newServer(a)

	sched, err := engine.NewScheduler(a.engine, a.cfg.Accounts.RefreshInterval, newNotifier(a), logger)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	logger.Info("starting server", "addr", addr, "environments", a.engine.Environments())

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			<-sched.Stop().Done()
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("keep-alive still running at shutdown")
	}

	logger.Info("server stopped")
	return nil
}

// newServer builds the Echo instance with the operational endpoints and
// the Huma API routes.
func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = a.cfg.Server.ReadTimeout
	e.Server.WriteTimeout = a.cfg.Server.WriteTimeout

	e.Use(
		middleware.RequestLog(a.log),
		middleware.Metrics(),
		middleware.Recovery(a.log),
	)

	health := handlers.NewHealthHandler(a.engine)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("eBay Lister API", Version))
	handlers.RegisterAccountRoutes(api, handlers.NewAccountHandler(a.engine))
	handlers.RegisterAuthRoutes(api, handlers.NewAuthHandler(a.engine))
	handlers.RegisterListingRoutes(api, handlers.NewListingHandler(a.engine))
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(a.engine))

	return e
}
