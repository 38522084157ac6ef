package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/CamDog38/ShopDelta2-sub001/internal/api"
	"github.com/CamDog38/ShopDelta2-sub001/internal/auth"
	"github.com/CamDog38/ShopDelta2-sub001/internal/config"
	"github.com/CamDog38/ShopDelta2-sub001/internal/lock"
	"github.com/CamDog38/ShopDelta2-sub001/internal/log"
	"github.com/CamDog38/ShopDelta2-sub001/internal/metrics"
	"github.com/CamDog38/ShopDelta2-sub001/internal/session"
	"github.com/CamDog38/ShopDelta2-sub001/internal/share"
	"github.com/CamDog38/ShopDelta2-sub001/internal/storage"
	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
	"github.com/CamDog38/ShopDelta2-sub001/internal/webhook"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "webhook":
		os.Exit(runWebhookNoun(args))
	case "share":
		os.Exit(runShareNoun(args))

	case "start":
		os.Exit(runStart(args))
	case "version":
		fmt.Printf("shopdelta version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`shopdelta - Shopify app backend: webhook compliance and report share links

Usage:
  shopdelta <noun> <action> [flags]

Core Resources (Nouns):
  system    Service lifecycle
  config    Configuration validation and integrity
  webhook   Webhook tooling
  share     Share link administration

System Commands:
  system start        Start the webhook and API listeners in foreground

Config Commands:
  config check        Validate configuration and report warnings
  config lock         Record the config hash in .checksums
  config show         Print the resolved configuration (secrets redacted)
  config get <path>   Print one setting by dot path
  config set k=v      Edit one setting (--dry-run or --apply)

Webhook Commands:
  webhook sign        Compute the HMAC header value for a payload

Share Commands:
  share list          List a shop's share links
  share revoke <id>   Revoke a share link

General:
  version             Show version information
  help                Show this help message

Every action accepts --config PATH and --env-file PATH.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: shopdelta system start [--config PATH] [--env-file PATH]")
			fmt.Println("Start the webhook listener and, when enabled, the API listener.")
			return 0
		}
		return runStart(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: shopdelta config check [--config PATH] [--format human|json] [--strict]")
			fmt.Println("Validate configuration. Exit 1 on errors, 2 on warnings with --strict.")
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: shopdelta config lock [--config PATH] [--dry-run]")
			fmt.Println("Authorize the current config by recording its BLAKE3 hash.")
			return 0
		}
		return runConfigLock(actionArgs)
	case "get":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: shopdelta config get <path> [--config PATH] [--json]")
			fmt.Println("Print one setting by dot path, e.g. webhooks.step_timeout. Secrets are redacted.")
			return 0
		}
		return runConfigGet(actionArgs)
	case "set":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: shopdelta config set <path>=<value> [--config PATH] (--dry-run | --apply)")
			fmt.Println("Edit one setting in the config file. The result must still validate.")
			return 0
		}
		return runConfigSet(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: shopdelta config show [--config PATH] [--json]")
			fmt.Println("Print the resolved configuration with secrets redacted.")
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runWebhookNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shopdelta webhook sign [--config PATH] [--file BODY] [--previous]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "sign":
		return runWebhookSign(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown webhook action: %s\n", action)
		return 1
	}
}

func runShareNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shopdelta share <list|revoke> --shop DOMAIN [--config PATH] [--json] [id]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "list":
		return runShareList(actionArgs)
	case "revoke":
		return runShareRevoke(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown share action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: shopdelta system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: shopdelta config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show, get, set")
}

// --- SHARED FLAGS ---

type commonFlags struct {
	configPath string
	envFile    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to configuration file or directory")
	fs.StringVar(&c.envFile, "env-file", "", "Load environment variables from this file before reading config")
}

// load reads the env file (if any) and then the configuration.
func (c *commonFlags) load() (*config.Config, error) {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	path := c.configPath
	if path == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		path = discovered
	}
	return config.Load(path)
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	var flags commonFlags
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := flags.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.SetupWithFile(cfg.Service.LogLevel, cfg.Service.LogFormat, log.FileOptions{
		Path:       cfg.Service.LogFile,
		MaxSizeMB:  cfg.Service.LogMaxSizeMB,
		MaxBackups: cfg.Service.LogMaxBackups,
	})
	logger := log.WithComponent("main")
	logger.Info("shopdelta starting", "version", version, "config", cfg.SourcePath)

	instance, err := lock.Acquire(lock.PathFor(cfg.State.Path))
	if err != nil {
		logger.Error("failed to acquire instance lock", "state", cfg.State.Path, "error", err)
		return 1
	}
	defer instance.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	sessions, err := session.Open(ctx, cfg.Sessions, db)
	if err != nil {
		logger.Error("failed to open session store", "backend", cfg.Sessions.Backend, "error", err)
		return 1
	}
	defer sessions.Close()
	logger.Info("session store opened", "backend", cfg.Sessions.Backend)

	if cfg.Metrics.Enabled {
		metrics.RegisterDefault()
	}

	shops := tenant.NewDirectory(db)
	issuer := share.NewIssuer(share.NewSQLiteStore(db), share.NewHasher(cfg.Share.PasswordPepper), log.WithComponent("share"))

	webhookConfig, err := webhook.FromGlobalConfig(&cfg.Webhooks, &cfg.Shopify)
	if err != nil {
		logger.Error("failed to configure webhooks", "error", err)
		return 1
	}
	dispatcher := webhook.NewDispatcher(sessions, shops, issuer, webhookConfig.StepTimeout, log.WithComponent("dispatcher"))
	webhookServer := webhook.New(webhookConfig, dispatcher, log.WithComponent("webhook"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webhookServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("webhook: %w", err)
		}
	}()
	logger.Info("webhook server enabled", "listen", webhookConfig.Listen, "secrets", len(webhookConfig.Secrets))

	if cfg.API.Enabled {
		verifier := auth.NewSessionTokenVerifier(cfg.Shopify.APIKey, cfg.API.SessionTokenLeeway,
			cfg.Shopify.APISecret, cfg.Shopify.PreviousAPISecret)
		apiServer := api.New(api.Config{
			Listen:          cfg.API.Listen,
			PublicBaseURL:   cfg.Share.PublicBaseURL,
			UnlockPerMinute: cfg.API.UnlockPerMinute,
			UnlockBurst:     cfg.API.UnlockBurst,
			MetricsEnabled:  cfg.Metrics.Enabled,
			MetricsPath:     cfg.Metrics.Path,
		}, verifier, shops, issuer, log.WithComponent("api"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("shopdelta running (press Ctrl+C to stop)")

	code := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		code = 1
	}
	cancel()
	wg.Wait()

	logger.Info("shopdelta stopped")
	return code
}
