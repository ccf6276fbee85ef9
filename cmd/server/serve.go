package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wakala/exchangedesk/internal/api"
	"github.com/wakala/exchangedesk/internal/config"
	"github.com/wakala/exchangedesk/internal/console"
	"github.com/wakala/exchangedesk/internal/desk"
	"github.com/wakala/exchangedesk/internal/dispatch"
	"github.com/wakala/exchangedesk/internal/events"
	"github.com/wakala/exchangedesk/internal/gateway"
	"github.com/wakala/exchangedesk/internal/prompt"
	"github.com/wakala/exchangedesk/internal/rates"
	"github.com/wakala/exchangedesk/internal/session"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept bridge events and run the desk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, store, logger, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.BridgeURL == "" {
		return errors.New("BRIDGE_URL is required to serve")
	}

	publisher := openPublisher(cfg, logger)
	defer publisher.Close()

	dispatcher := dispatch.New(logger)
	sessions := session.NewStore(time.Now)
	prompts := prompt.New(sessions, dispatcher, cfg.PromptDelayMin, cfg.PromptDelayMax, logger)
	janitor := session.NewJanitor(sessions, dispatcher, cfg.SessionTTL, cfg.JanitorSchedule, logger)

	var pacer desk.Pacer = desk.NoPacer{}
	if cfg.PacingEnabled {
		pacer = desk.NewHumanPacer()
	}

	d := desk.New(desk.Options{
		AdminMagic:  cfg.AdminMagic,
		AllowGroups: cfg.AllowGroups,
		Signature:   cfg.Signature,
		ExplorerURL: cfg.ExplorerURL,
	}, desk.Deps{
		Store:     store,
		Sessions:  sessions,
		Prompts:   prompts,
		Console:   console.New(store, logger),
		Messenger: gateway.NewSafe(gateway.NewBridgeClient(cfg.BridgeURL, cfg.BridgeToken, cfg.BridgeRPS), logger),
		Rates:     rates.NewResolver(rates.NewClient(cfg.RateURL, cfg.RateTimeout), logger),
		Events:    publisher,
		Submitter: dispatcher,
		Pacer:     pacer,
		Logger:    logger,
	})

	if err := janitor.Start(); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.NewRouter(store, d, cfg.BridgeToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "api_base", "/api/v1")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	<-janitor.Stop().Done()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("dispatcher shutdown", "error", err)
	}
	logger.Info("stopped gracefully")
	return nil
}

// openPublisher connects to RabbitMQ when configured. The desk keeps
// working without a broker; lifecycle events are then dropped.
func openPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, order events disabled")
		return events.Noop{}
	}
	p, err := events.NewProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, order events disabled", "error", err)
		return events.Noop{}
	}
	return p
}
