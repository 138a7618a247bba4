// Package main implements gatewayctl, the operator CLI for the
// gateway (spec.md §6): ad hoc chat requests against a running
// gatewayd, local tool/config inspection, mobile-key management, and
// schema migrations, mirroring the teacher's slctl dispatch style.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("no command specified")
	}

	switch args[0] {
	case "chat":
		return cmdChat(ctx, args[1:])
	case "tools":
		return cmdTools(ctx, args[1:])
	case "config":
		return cmdConfig(ctx, args[1:])
	case "mobile-key":
		return cmdMobileKey(ctx, args[1:])
	case "migrations":
		return cmdMigrations(ctx, args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Println(`gatewayctl - gateway operator CLI

Usage:
  gatewayctl chat <message> [--tool NAME] [--project ID] [--conversation ID]
  gatewayctl tools
  gatewayctl config
  gatewayctl mobile-key --generate | --show
  gatewayctl migrations status|up|down [--version N] [--dry-run]

Global env:
  GATEWAY_ADDR   base URL of a running gatewayd (default http://localhost:8080)
  GATEWAY_TOKEN  bearer token or API key sent as X-API-Key`)
}

func apiClient() (addr, token string, client *http.Client) {
	addr = strings.TrimRight(getenv("GATEWAY_ADDR", "http://localhost:8080"), "/")
	token = os.Getenv("GATEWAY_TOKEN")
	client = &http.Client{Timeout: 2 * time.Minute}
	return
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRequest(ctx context.Context, method, addr, token, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, addr+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-API-Key", token)
	}
	return req, nil
}

func cmdChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	tool := fs.String("tool", "", "explicit tool override")
	project := fs.String("project", "", "project ID for context scoping")
	conversation := fs.String("conversation", "", "existing conversation ID to continue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("chat requires a message argument")
	}
	message := strings.Join(fs.Args(), " ")

	addr, token, client := apiClient()
	payload := fmt.Sprintf(`{"message":%q,"tool":%q,"project_id":%q,"conversation_id":%q}`,
		message, *tool, *project, *conversation)

	req, err := newRequest(ctx, http.MethodPost, addr, token, "/api/v1/chat", strings.NewReader(payload))
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gatewayd returned %d: %s", resp.StatusCode, body)
	}
	fmt.Println(string(body))
	return nil
}

func cmdTools(ctx context.Context, _ []string) error {
	addr, token, client := apiClient()
	req, err := newRequest(ctx, http.MethodGet, addr, token, "/api/v1/tools", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gatewayd returned %d: %s", resp.StatusCode, body)
	}
	fmt.Println(string(body))
	return nil
}

func cmdConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	path := fs.String("path", "gateway.toml", "path to the gateway TOML config file")
	envPath := fs.String("env", ".env", "path to a .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*path, *envPath)
	if err != nil {
		return err
	}
	fmt.Printf("storage.db_type:         %s\n", cfg.dbType)
	fmt.Printf("routing.default_tool:    %s\n", cfg.defaultTool)
	fmt.Printf("api.rate_limit_per_min:  %d\n", cfg.rateLimitPerMin)
	fmt.Printf("enabled tools:           %s\n", strings.Join(cfg.enabledTools, ", "))
	return nil
}

func cmdMobileKey(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("mobile-key", flag.ContinueOnError)
	generate := fs.Bool("generate", false, "generate and print a fresh mobile API key")
	show := fs.Bool("show", false, "print the currently configured MOBILE_API_KEY")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *generate:
		key, err := generateMobileKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	case *show:
		key := os.Getenv("MOBILE_API_KEY")
		if key == "" {
			return errors.New("MOBILE_API_KEY is not set in the current environment")
		}
		fmt.Println(key)
		return nil
	default:
		return errors.New("mobile-key requires --generate or --show")
	}
}

func cmdMigrations(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("migrations requires a subcommand: status, up, down")
	}
	fs := flag.NewFlagSet("migrations", flag.ContinueOnError)
	version := fs.Int("version", 0, "target migration version (up/down)")
	dryRun := fs.Bool("dry-run", false, "report what would change without applying it")
	dsn := fs.String("dsn", os.Getenv("DATABASE_URL"), "database connection string (env DATABASE_URL)")
	dbType := fs.String("db-type", getenv("GATEWAY_DB_TYPE", "sqlite"), "sqlite or postgresql")
	subcommand := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	runner, closeFn, err := openMigrationRunner(*dbType, *dsn)
	if err != nil {
		return err
	}
	defer closeFn()

	switch subcommand {
	case "status":
		return printMigrationStatus(ctx, runner)
	case "up":
		var target *int
		if *version > 0 {
			target = version
		}
		return applyMigrationsUp(ctx, runner, target, *dryRun)
	case "down":
		if *version <= 0 {
			return errors.New("migrations down requires --version")
		}
		return applyMigrationsDown(ctx, runner, *version, *dryRun)
	default:
		return fmt.Errorf("unknown migrations subcommand %q", subcommand)
	}
}

