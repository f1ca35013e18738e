// ABOUTME: Terminal chat client for the brewdesk catalog assistant
// ABOUTME: Sends questions to the backend and renders markdown replies

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/chat"
	"github.com/2389/brewdesk/internal/config"
	"github.com/2389/brewdesk/internal/events"
	"github.com/2389/brewdesk/internal/logging"
)

const banner = `
  ┏┓ ┏━┓┏━╸╻ ╻╺┳┓┏━╸┏━┓╻┏
  ┣┻┓┣┳┛┣╸ ┃╻┃ ┃┃┣╸ ┗━┓┣┻┓
  ┗━┛╹┗╸┗━╸┗┻┛╺┻┛┗━╸┗━┛╹ ╹  chat
`

func main() {
	configPath := flag.String("config", "", "config file (default $"+config.EnvConfigPath+" or ./brewdesk.yaml)")
	baseURL := flag.String("url", "", "backend base URL (overrides api.base_url)")
	sessionID := flag.String("session", "", "chat session id (overrides chat.session_id)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *baseURL, *sessionID); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Goodbye!")
}

func run(ctx context.Context, configPath, baseURL, sessionID string) error {
	cfg, err := config.Load(config.Resolve(configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if sessionID != "" {
		cfg.Chat.SessionID = sessionID
	}
	paths, err := cfg.APIPaths()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	client, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		PerPage: cfg.API.PerPage,
		Paths:   paths,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	bus := events.New(logger)
	defer bus.Close()

	sess := chat.New(client, chat.Config{
		SessionID:   cfg.Chat.SessionID,
		SendHistory: cfg.Chat.SendHistory,
		Events:      bus,
		Logger:      logger,
	})

	color.New(color.FgCyan).Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    backend: %s\n", client.BaseURL())
	gray.Printf("    session: %s\n\n", sess.ID())

	r := newChatREPL(sess, client, bus, os.Stdin, os.Stdout)
	return r.run(ctx)
}
