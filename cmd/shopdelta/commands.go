package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CamDog38/ShopDelta2-sub001/internal/config"
	"github.com/CamDog38/ShopDelta2-sub001/internal/doctor"
	"github.com/CamDog38/ShopDelta2-sub001/internal/log"
	"github.com/CamDog38/ShopDelta2-sub001/internal/share"
	"github.com/CamDog38/ShopDelta2-sub001/internal/storage"
	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
	"github.com/CamDog38/ShopDelta2-sub001/internal/webhook"
)

const redacted = "<redacted>"

func runConfigCheck(args []string) int {
	var flags commonFlags
	var strict, jsonOut bool
	var format string

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	flags.register(fs)
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if jsonOut {
		format = "json"
	}

	cfg, err := flags.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()
	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&dryRun, "dry-run", false, "Compute the hash without writing .checksums")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}

	report, err := config.Lock(configPath, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	fmt.Printf("  HASH %s: %s\n", report.ConfigPath, report.Hash)
	if report.Written {
		fmt.Printf("  WROTE %s\n", report.ChecksumPath)
	} else {
		fmt.Printf("  DRY-RUN %s (not written)\n", report.ChecksumPath)
	}
	return 0
}

func runConfigShow(args []string) int {
	var flags commonFlags
	var jsonOut bool

	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	flags.register(fs)
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := flags.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	out := redactConfig(*cfg)

	if jsonOut {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "YAML format error: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// redactConfig blanks credentials before a config is printed.
func redactConfig(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Shopify.APISecret)
	mask(&cfg.Shopify.PreviousAPISecret)
	mask(&cfg.Share.PasswordPepper)
	mask(&cfg.Sessions.RedisURL)
	mask(&cfg.Sessions.PostgresURL)
	return cfg
}

func runConfigGet(args []string) int {
	var flags commonFlags
	var jsonOut bool

	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	flags.register(fs)
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: shopdelta config get <path> [--json]")
		return 1
	}

	cfg, err := flags.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	safe := redactConfig(*cfg)
	val, err := safe.GetPath(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if jsonOut {
		data, _ := json.MarshalIndent(val, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	switch val.(type) {
	case map[string]any, []any:
		data, _ := yaml.Marshal(val)
		fmt.Print(string(data))
	default:
		fmt.Printf("%v\n", val)
	}
	return 0
}

func runConfigSet(args []string) int {
	var flags commonFlags
	var dryRun, apply bool

	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	flags.register(fs)
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the change without writing")
	fs.BoolVar(&apply, "apply", false, "Write the change to the config file")

	var kvPair string
	var remaining []string
	for _, arg := range args {
		if kvPair == "" && !strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			kvPair = arg
			continue
		}
		remaining = append(remaining, arg)
	}
	if err := fs.Parse(remaining); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if kvPair == "" {
		fmt.Fprintln(os.Stderr, "Usage: shopdelta config set <path>=<value> [--dry-run | --apply]")
		return 1
	}
	if dryRun == apply {
		fmt.Fprintln(os.Stderr, "Specify exactly one of --dry-run or --apply")
		return 1
	}
	path, value, _ := strings.Cut(kvPair, "=")

	cfg, err := flags.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	if err := cfg.SetPath(path, value, apply); err != nil {
		fmt.Fprintf(os.Stderr, "Set failed: %v\n", err)
		return 1
	}
	if dryRun {
		fmt.Printf("Dry-run: %s would be set to %q in %s\n", path, value, cfg.SourcePath)
		return 0
	}

	fmt.Printf("Set %s to %q in %s\n", path, value, cfg.SourcePath)
	if _, err := config.LoadChecksums(filepath.Dir(cfg.SourcePath)); err == nil {
		fmt.Printf("Config is locked; run: shopdelta config lock --config %s\n", cfg.SourcePath)
	}
	return 0
}

func runWebhookSign(args []string) int {
	var flags commonFlags
	var file string
	var previous bool

	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	flags.register(fs)
	fs.StringVar(&file, "file", "", "Payload file (default: stdin)")
	fs.BoolVar(&previous, "previous", false, "Sign with previous_api_secret")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := flags.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	secret := cfg.Shopify.APISecret
	if previous {
		secret = cfg.Shopify.PreviousAPISecret
		if secret == "" {
			fmt.Fprintln(os.Stderr, "shopify.previous_api_secret is not configured")
			return 1
		}
	}

	body, err := readPayload(file, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 1
	}

	fmt.Println(webhook.Sign(body, []byte(secret)))
	return 0
}

func readPayload(file string, stdin io.Reader) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

type shareArgs struct {
	common     commonFlags
	shop       string
	jsonOut    bool
	positional []string
}

// parseShareArgs accepts flags before or after positional arguments.
func parseShareArgs(name string, args []string) (*shareArgs, error) {
	sa := &shareArgs{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	sa.common.register(fs)
	fs.StringVar(&sa.shop, "shop", "", "Shop domain that owns the links")
	fs.BoolVar(&sa.jsonOut, "json", false, "Output in JSON")

	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		sa.positional = append(sa.positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	sa.shop = tenant.NormalizeDomain(sa.shop)
	if sa.shop == "" {
		return nil, fmt.Errorf("--shop is required")
	}
	return sa, nil
}

func openIssuer(flags *commonFlags) (*share.Issuer, func(), error) {
	cfg, err := flags.load()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.OpenSQLite(context.Background(), cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	issuer := share.NewIssuer(share.NewSQLiteStore(db), share.NewHasher(cfg.Share.PasswordPepper), log.Discard())
	return issuer, func() { _ = db.Close() }, nil
}

func runShareList(args []string) int {
	sa, err := parseShareArgs("list", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	issuer, closeDB, err := openIssuer(&sa.common)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state: %v\n", err)
		return 1
	}
	defer closeDB()

	tokens, err := issuer.List(context.Background(), sa.shop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		return 1
	}

	now := time.Now()
	if sa.jsonOut {
		views := make([]share.View, 0, len(tokens))
		for _, t := range tokens {
			views = append(views, t.View(now, ""))
		}
		data, _ := json.MarshalIndent(views, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	printShareTable(os.Stdout, tokens, now)
	return 0
}

func printShareTable(w io.Writer, tokens []share.Token, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tMODE\tSTATE\tVIEWS\tTITLE")
	for _, t := range tokens {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", t.ID, t.Code, t.Mode, t.State(now), t.ViewCount, t.Title)
	}
	_ = tw.Flush()
}

func runShareRevoke(args []string) int {
	sa, err := parseShareArgs("revoke", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(sa.positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: shopdelta share revoke <id> --shop DOMAIN [--config PATH]")
		return 1
	}

	issuer, closeDB, err := openIssuer(&sa.common)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state: %v\n", err)
		return 1
	}
	defer closeDB()

	t, err := issuer.Revoke(context.Background(), sa.shop, sa.positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Revoke failed: %v\n", err)
		return 1
	}
	fmt.Printf("Revoked share %s (code %s)\n", t.ID, t.Code)
	return 0
}
