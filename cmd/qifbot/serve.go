package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/qifbot/qifbot/internal/chat"
	"github.com/qifbot/qifbot/internal/common"
	"github.com/qifbot/qifbot/internal/conversation"
	"github.com/qifbot/qifbot/internal/monitoring"
	"github.com/qifbot/qifbot/internal/qif"
	"github.com/qifbot/qifbot/internal/storage"
	"github.com/qifbot/qifbot/internal/user"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversational categorization service",
		Long: `Run the long-lived categorization service.

Inbound chat events arrive as JSON webhooks from a chat gateway; replies,
keyboards and finished QIF documents are delivered back to the gateway.
A monitoring endpoint exposes Prometheus metrics and a status probe.`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", ":8080", "Address for the inbound event webhook")
	cmd.Flags().String("monitoring-listen", ":9090", "Address for /metrics and /status")
	cmd.Flags().String("gateway", "", "Base URL of the chat gateway (required)")
	cmd.Flags().String("account", "Wallet", "QIF account name for generated documents")
	cmd.Flags().String("account-type", "Cash", "QIF account type for generated documents")

	_ = viper.BindPFlag("serve.listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("serve.monitoring_listen", cmd.Flags().Lookup("monitoring-listen"))
	_ = viper.BindPFlag("serve.gateway", cmd.Flags().Lookup("gateway"))
	_ = viper.BindPFlag("serve.account", cmd.Flags().Lookup("account"))
	_ = viper.BindPFlag("serve.account_type", cmd.Flags().Lookup("account-type"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Canceled on every exit path so the user manager always stops and
	// flushes before the database closes.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	gateway := viper.GetString("serve.gateway")
	if gateway == "" {
		return fmt.Errorf("%w: set --gateway or QIFBOT_SERVE_GATEWAY", common.ErrMissingConfig)
	}

	accountType, err := qif.ParseAccountType(viper.GetString("serve.account_type"))
	if err != nil {
		return err
	}

	dbPath, err := databasePath()
	if err != nil {
		return err
	}
	kv, err := storage.NewSQLiteKV(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	users := user.NewManager(kv)
	users.Start(ctx)

	metrics := monitoring.NewMetrics()
	engine := conversation.NewEngine(conversation.Config{
		Transport: chat.NewWebhookTransport(gateway),
		Users:     users,
		Metrics:   metrics,
		Account: qif.Account{
			Name: viper.GetString("serve.account"),
			Type: accountType,
		},
	})

	dispatcher := chat.NewDispatcher(engine)
	handle := dispatcher.Run(ctx)

	monitoringErr := make(chan error, 1)
	go func() {
		monitoringErr <- metrics.Serve(ctx, viper.GetString("serve.monitoring_listen"))
	}()

	events := &http.Server{
		Addr:              viper.GetString("serve.listen"),
		Handler:           chat.EventHandler(dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
	}
	eventsErr := make(chan error, 1)
	go func() {
		slog.Info("Accepting chat events", "addr", events.Addr, "gateway", gateway)
		eventsErr <- events.ListenAndServe()
	}()

	var runErr error
	eventsExited := false
	select {
	case <-ctx.Done():
	case serverErr := <-eventsErr:
		eventsExited = true
		runErr = fmt.Errorf("event server failed: %w", serverErr)
	case serverErr := <-monitoringErr:
		runErr = fmt.Errorf("monitoring server failed: %w", serverErr)
	}

	// Shut the event intake first so the dispatcher can drain what is
	// already queued before the user manager goes away.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := events.Shutdown(shutdownCtx); err != nil {
		slog.Error("Event server shutdown failed", "error", err)
	}
	handle.Stop()
	cancel()
	<-users.Done()

	if !eventsExited {
		if err := <-eventsErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Event server exited with error", "error", err)
		}
	}
	slog.Info("Service stopped")
	return runErr
}
