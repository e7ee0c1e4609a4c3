// Mtgprep prepares meeting briefs from Slack history, HubSpot records and
// web research.
//
// It exposes an HTTP JSON API and a CLI for one-shot briefs. Configuration
// is loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]); without one, defaults are overlaid with
// the usual environment variables.
//
// Usage:
//
//	mtgprep serve                       Start the API server
//	mtgprep brief <channel-id>          Print a conversation brief
//	mtgprep research <company> [url]    Print a business development report
//	mtgprep channels                    List channels a brief can use
//	mtgprep version                     Print version and build information
//	mtgprep -o json version             Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mtgprep/mtgprep/internal/api"
	"github.com/mtgprep/mtgprep/internal/brief"
	"github.com/mtgprep/mtgprep/internal/buildinfo"
	"github.com/mtgprep/mtgprep/internal/config"
)

// main builds the OS-level environment and hands off to [run], keeping
// os.Exit and os.Args out of the testable path.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// options are the global flags shared by every command.
type options struct {
	configPath string
	outputFmt  string // text or json
	effort     string
	prompt     string
}

// run is the real entry point. Logs go to stdout for serve and to
// stderr for the one-shot commands so their output can be piped.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// Parsed by hand: the flag package's globals get in the way of
	// calling run from parallel tests.
	var opts options
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			opts.configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			opts.configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			opts.outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			opts.outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			opts.outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-effort" && i+1 < len(args):
			opts.effort = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-effort="):
			opts.effort = strings.TrimPrefix(args[i], "-effort=")
		case args[i] == "-prompt" && i+1 < len(args):
			opts.prompt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-prompt="):
			opts.prompt = strings.TrimPrefix(args[i], "-prompt=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if opts.outputFmt == "" {
		opts.outputFmt = "text"
	}
	if opts.outputFmt != "text" && opts.outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", opts.outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, opts)
	case "brief":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: mtgprep brief <channel-id>")
		}
		return runBrief(ctx, stdout, stderr, opts, cmdArgs[0])
	case "research":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: mtgprep research <company> [website]")
		}
		website := ""
		if len(cmdArgs) > 1 {
			website = cmdArgs[1]
		}
		return runResearch(ctx, stdout, stderr, opts, cmdArgs[0], website)
	case "channels":
		return runChannels(ctx, stdout, stderr, opts)
	case "version":
		return runVersion(stdout, opts.outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		return writeIndented(w, info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Mtgprep - meeting preparation assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: mtgprep [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                     Start the API server")
	fmt.Fprintln(w, "  brief <channel-id>        Prepare an internal brief from a Slack channel")
	fmt.Fprintln(w, "  research <company> [url]  Prepare a business development report")
	fmt.Fprintln(w, "  channels                  List channels a brief can be prepared from")
	fmt.Fprintln(w, "  version                   Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w, "  -effort <level>   Reasoning effort: low, medium or high")
	fmt.Fprintln(w, "  -prompt <text>    Replace the default user prompt")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/mtgprep/config.yaml, /etc/mtgprep/config.yaml")
	return nil
}

// runServe starts the API server and blocks until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, opts options) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting mtgprep", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger = configuredLogger(stdout, cfg)
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Reasoning.Model,
		"slack", cfg.Slack.Configured(),
		"hubspot", cfg.HubSpot.Configured(),
	)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	app, err := newApp(ctx, cfg, filepath.Join(cfg.DataDir, "usage.db"), logger)
	if err != nil {
		return err
	}
	defer app.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := app.llm.Ping(pingCtx); err != nil {
		logger.Warn("model provider not reachable", "model", cfg.Reasoning.Model, "error", err)
	}
	pingCancel()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, app.service, logger)
	if app.usage != nil {
		server.SetUsageLog(app.usage)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("mtgprep stopped")
	return nil
}

// runBrief prints one conversation brief.
func runBrief(ctx context.Context, stdout, stderr io.Writer, opts options, channelID string) error {
	app, cfg, err := oneShot(ctx, stderr, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.service.PrepareConversationBrief(ctx, brief.ConversationRequest{
		ChannelID:    channelID,
		LookbackDays: cfg.Collector.LookbackDays,
		MaxMessages:  cfg.Collector.MaxMessages,
		ResolveNames: true,
		Instruction:  opts.prompt,
		Effort:       opts.effort,
	})
	if err != nil {
		return fmt.Errorf("brief: %w", err)
	}
	return printResult(stdout, opts.outputFmt, res)
}

// runResearch prints one business development report.
func runResearch(ctx context.Context, stdout, stderr io.Writer, opts options, company, website string) error {
	app, _, err := oneShot(ctx, stderr, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.service.PrepareBDReport(ctx, brief.BDRequest{
		Company:     company,
		Website:     website,
		CheckCRM:    true,
		Instruction: opts.prompt,
		Effort:      opts.effort,
	})
	if err != nil {
		return fmt.Errorf("research: %w", err)
	}
	return printResult(stdout, opts.outputFmt, res)
}

// runChannels lists channels matching the configured prefixes.
func runChannels(ctx context.Context, stdout, stderr io.Writer, opts options) error {
	app, _, err := oneShot(ctx, stderr, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	channels, err := app.service.Channels(ctx)
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	if opts.outputFmt == "json" {
		return writeIndented(stdout, channels)
	}
	for _, c := range channels {
		fmt.Fprintf(stdout, "%s\t#%s\n", c.ID, c.Name)
	}
	return nil
}

// oneShot loads configuration and builds the service for a CLI command.
// The usage log is not opened; it records API traffic only.
func oneShot(ctx context.Context, stderr io.Writer, opts options) (*app, *config.Config, error) {
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, cfg, "", configuredLogger(stderr, cfg))
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func printResult(w io.Writer, outputFmt string, res *brief.Result) error {
	if outputFmt == "json" {
		return writeIndented(w, res)
	}
	fmt.Fprintln(w, res.Markdown)
	return nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newLogger creates a structured logger at the given level and format.
// Any format other than "json" yields text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// configuredLogger applies the configured level and format. The level
// was checked by Validate.
func configuredLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return newLogger(w, level, cfg.LogFormat)
}

// loadConfig locates and parses the YAML configuration. With no explicit
// path and no file in the search path, it falls back to defaults. The
// environment is applied last and the result validated.
func loadConfig(explicit string) (*config.Config, string, error) {
	var cfg *config.Config
	cfgPath, err := config.FindConfig(explicit)
	switch {
	case err == nil:
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
	case explicit != "":
		return nil, "", err
	default:
		cfg, cfgPath = config.Default(), "(defaults)"
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfgPath, nil
}
