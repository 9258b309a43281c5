package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sheikh-saqib/dao-treasury-ledger/internal/api"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/config"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/directory"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/events/logging"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/metrics"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/storage"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/token"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/treasury"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/voting"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/wallet"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "dao-ledger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          appName,
		Short:        "Treasury ledger and proposal registry for a minimal DAO",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	stores, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer stores.Close()

	var publisher interfaces.EventPublisher = logging.NewPublisher(logger.With(slog.String("component", "events")))
	if len(cfg.Kafka.Brokers) > 0 {
		kp := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer kp.Close()
		publisher = kp
	}

	owner := cfg.OwnerAccount()
	book := wallet.NewBook()
	dir := directory.New()

	ledger, err := treasury.New(ctx, stores.Treasury, owner,
		treasury.WithPublisher(publisher),
		treasury.WithTransferer(book),
		treasury.WithLogger(logger.With(slog.String("component", "treasury"))),
	)
	if err != nil {
		return err
	}
	treasuryAddress := dir.Deploy(owner, ledger)

	registryOpts := []voting.Option{
		voting.WithPublisher(publisher),
		voting.WithLogger(logger.With(slog.String("component", "registry"))),
	}
	if cfg.Voting.SingleVote {
		registryOpts = append(registryOpts, voting.WithSingleVote())
	}
	registry, err := voting.New(ctx, stores.Proposals, owner, dir, registryOpts...)
	if err != nil {
		return err
	}

	tok, err := token.New(owner,
		token.WithPublisher(publisher),
		token.WithLogger(logger.With(slog.String("component", "token"))),
	)
	if err != nil {
		return err
	}

	server := api.NewServer(ledger, registry, tok, book, metrics.New(), logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("owner", owner.Hex()),
			slog.String("treasury_address", treasuryAddress.Hex()),
			slog.String("storage", cfg.Storage.Driver),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
