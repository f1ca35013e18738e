// ABOUTME: Entry point for the local brewdesk catalog backend
// ABOUTME: Serves the REST contract from SQLite; also hashes passwords and imports seed data

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/2389/brewdesk/internal/backend"
	"github.com/2389/brewdesk/internal/catalog"
	"github.com/2389/brewdesk/internal/config"
	"github.com/2389/brewdesk/internal/logging"
)

// Version is set at build time.
var version = "dev"

const banner = `
  ┏┓ ┏━┓┏━╸╻ ╻╺┳┓┏━╸┏━┓╻┏
  ┣┻┓┣┳┛┣╸ ┃╻┃ ┃┃┣╸ ┗━┓┣┻┓
  ┗━┛╹┗╸┗━╸┗┻┛╺┻┛┗━╸┗━┛╹ ╹  backend
`

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "hash-password":
		err = runHashPassword()
	case "import":
		err = runImport(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: brewdesk-backend <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [-config F] [-addr A] [-db F]   Start the backend")
	fmt.Println("  hash-password                         Read a password and print its bcrypt hash")
	fmt.Println("  import [-config F] [-db F] FILE       Load catalog records from a JSON file")
}

// loadConfig parses the shared flags and loads the resolved config file.
func loadConfig(name string, args []string) (*config.Config, *flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (default $"+config.EnvConfigPath+" or ./brewdesk.yaml)")
	addr := fs.String("addr", "", "listen address (overrides backend.addr)")
	db := fs.String("db", "", "database path (overrides backend.database_path)")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(config.Resolve(*configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if *addr != "" {
		cfg.Backend.Addr = *addr
	}
	if *db != "" {
		cfg.Backend.DatabasePath = *db
	}
	return cfg, fs, nil
}

func runServe(ctx context.Context, args []string) error {
	cfg, _, err := loadConfig("serve", args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBackend(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	logger := logging.New(cfg.Logging, os.Stdout)

	hash := cfg.Backend.AdminPasswordHash
	if hash == "" {
		logger.Warn("using plaintext backend.admin_password; set admin_password_hash outside development")
		if hash, err = backend.HashPassword(cfg.Backend.AdminPassword); err != nil {
			return err
		}
	}

	store, err := backend.NewStore(cfg.Backend.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	auth := backend.NewAuthenticator(hash, []byte(cfg.Backend.JWTSecret), cfg.Backend.SessionTTL,
		cfg.Backend.LoginRate, cfg.Backend.LoginBurst)
	defer auth.Close()

	var metrics *backend.Metrics
	if cfg.Metrics.Enabled {
		metrics = backend.NewMetrics()
	}

	srv := &http.Server{
		Addr: cfg.Backend.Addr,
		Handler: backend.NewServer(backend.Options{
			Store:         store,
			Auth:          auth,
			Metrics:       metrics,
			MetricsPath:   cfg.Metrics.Path,
			SecureCookies: cfg.Backend.SecureCookies,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Backend.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Backend.DatabasePath)
	if metrics != nil {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting brewdesk-backend", "addr", cfg.Backend.Addr, "db", cfg.Backend.DatabasePath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runHashPassword() error {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if len(pw) == 0 {
		return errors.New("password must not be empty")
	}
	hash, err := backend.HashPassword(string(pw))
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// seedFile is the import format: one array per collection, keyed by the
// collection path name ("outlets", "products", "food", "drinks").
type seedFile map[string]json.RawMessage

func runImport(ctx context.Context, args []string) error {
	cfg, fs, err := loadConfig("import", args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: brewdesk-backend import [-config F] [-db F] FILE")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	store, err := backend.NewStore(cfg.Backend.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	green := color.New(color.FgGreen)
	for name, raw := range seed {
		k, err := catalog.ParseKind(name)
		if err != nil {
			return fmt.Errorf("seed file: %w", err)
		}
		recs, err := catalog.DecodeList(k, raw)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if _, err := store.Create(ctx, rec.WithID(nil)); err != nil {
				return err
			}
		}
		green.Print("  ✓ ")
		fmt.Printf("%d %s\n", len(recs), k.Plural())
	}

	n, err := backend.Reindex(ctx, store)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	logger.Info("import complete", "indexed", n)
	return nil
}
