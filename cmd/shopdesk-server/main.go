package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shopdesk-backend/internal/chat"
	"shopdesk-backend/internal/config"
	"shopdesk-backend/internal/server"
)

var (
	// Global flags
	verbose bool
	port    string
	// ask flags
	askSession string
	askTimeout time.Duration

	logger *zap.Logger
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "shopdesk-server",
	Short: "ShopDesk customer support chat backend",
	Long: `ShopDesk answers customer messages with FAQ matching, order and refund
follow-ups, product catalog lookups and an AI fallback.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer a single message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")

	askCmd.Flags().StringVarP(&askSession, "session", "s", "cli", "Session id recorded with the exchange in chat history")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 30*time.Second, "Overall timeout for the reply")

	rootCmd.AddCommand(serveCmd, askCmd)
}

func loadConfig() config.Config {
	cfg := config.Load()
	if port != "" {
		cfg.Port = port
	}
	return cfg
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	s, err := server.NewServer(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("shutdown cleanup failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ShopDesk server listening", zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	s, err := server.NewServer(ctx, loadConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() { _ = s.Close() }()

	reply, err := s.Dispatcher().Reply(ctx, askSession, strings.Join(args, " "))
	if errors.Is(err, chat.ErrEmptyMessage) {
		return errors.New(chat.EmptyMessagePrompt)
	}
	if err != nil {
		return err
	}
	logger.Debug("reply generated", zap.String("source", string(reply.Source)), zap.String("intent", string(reply.Intent)))
	fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
