// ABOUTME: Admin console CLI for the brewdesk catalog
// ABOUTME: Logs in, then drives outlets, products, food and drinks through an interactive REPL

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
	"github.com/2389/brewdesk/internal/config"
	"github.com/2389/brewdesk/internal/events"
	"github.com/2389/brewdesk/internal/logging"
	"github.com/2389/brewdesk/internal/session"
)

const banner = `
  ┏┓ ┏━┓┏━╸╻ ╻╺┳┓┏━╸┏━┓╻┏
  ┣┻┓┣┳┛┣╸ ┃╻┃ ┃┃┣╸ ┗━┓┣┻┓
  ┗━┛╹┗╸┗━╸┗┻┛╺┻┛┗━╸┗━┛╹ ╹  admin
`

func main() {
	configPath := flag.String("config", "", "config file (default $"+config.EnvConfigPath+" or ./brewdesk.yaml)")
	baseURL := flag.String("url", "", "backend base URL (overrides api.base_url)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *baseURL); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Goodbye!")
}

func run(ctx context.Context, configPath, baseURL string) error {
	cfg, err := config.Load(config.Resolve(configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
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

	policy := session.LogoutKeepOnFailure
	if cfg.Session.ForceLocalLogout {
		policy = session.LogoutForceLocal
	}
	sess := session.New(client, session.Config{LogoutPolicy: policy, Events: bus, Logger: logger})

	color.New(color.FgCyan).Print(banner)
	color.New(color.FgHiBlack).Printf("    backend: %s\n\n", client.BaseURL())

	r := &repl{
		client: client,
		sess:   sess,
		bus:    bus,
		in:     newPrompter(os.Stdin, os.Stdout),
		out:    os.Stdout,
		logger: logger,
	}
	return r.run(ctx)
}
