package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pactd/internal/telegram"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Telegram bridge for out-of-band notifications and questions",
}

var telegramServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge: poll for replies and track team activity",
	RunE:  runTelegramServe,
}

var telegramNotifyCmd = &cobra.Command{
	Use:   "notify <message>",
	Short: "Send a one-off message to the configured chat",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTelegramNotify,
}

var telegramAskCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and wait for a reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTelegramAsk,
}

var telegramStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge configuration and connection state",
	RunE:  runTelegramStatus,
}

var askOptions []string

func init() {
	rootCmd.AddCommand(telegramCmd)
	telegramCmd.AddCommand(telegramServeCmd, telegramNotifyCmd, telegramAskCmd, telegramStatusCmd)
	telegramAskCmd.Flags().StringArrayVar(&askOptions, "option", nil, "answer button (repeatable)")
}

func newBridge() (*telegram.Bridge, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return telegram.New(cfg.Telegram, cfg.Paths.TeamsDir, logger), nil
}

func runTelegramServe(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	if !b.Configured() {
		fmt.Println(b.Status())
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Bridge running. Ctrl-C to stop.")
	return b.Serve(ctx)
}

func runTelegramNotify(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	defer b.Close()
	fmt.Println(b.Notify(cmd.Context(), strings.Join(args, " "), ""))
	return nil
}

func runTelegramAsk(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	if !b.Configured() {
		fmt.Println(b.Status())
		return nil
	}

	// Replies arrive through the poll loop, so the ask command runs its
	// own bridge lifecycle for the duration of the question.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx) }()

	answer := b.Ask(ctx, strings.Join(args, " "), askOptions, cfg.AskTimeout())
	cancel()
	<-done
	fmt.Println(answer)
	return nil
}

func runTelegramStatus(cmd *cobra.Command, args []string) error {
	b, err := newBridge()
	if err != nil {
		return err
	}
	defer b.Close()
	fmt.Println(b.Status())
	return nil
}
