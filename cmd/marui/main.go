package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"marui/internal/config"
	"marui/internal/errors"
	"marui/internal/observability"
)

var (
	configPath = flag.String("config", defaultConfigPath, "Path to config file")
	watch      = flag.Bool("watch", false, "Keep watching the project and rescan on changes")
	ui         = flag.Bool("ui", false, "Enable terminal UI mode (implies -watch)")
	traceChain = flag.Bool("trace", false, "Trace shortest import chain between two modules")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const (
	VERSION           = "0.3.0"
	defaultConfigPath = "./marui.toml"

	exitCycles = 2
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("marui v%s\n", VERSION)
		os.Exit(0)
	}

	setupLogging(*verbose, *ui)

	// .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	config.ApplyEnvOverrides(cfg)

	if *traceChain {
		if flag.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "trace mode requires two module arguments: marui -trace <from> <to>")
			os.Exit(1)
		}
	} else if flag.NArg() > 0 {
		cfg.ProjectRoot = flag.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, VERSION)
		if err != nil {
			slog.Error("failed to initialize tracing", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	if *traceChain {
		return runTrace(ctx, cfg, flag.Arg(0), flag.Arg(1), os.Stdout)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer app.Close()

	if err := app.StartObservability(ctx); err != nil {
		slog.Error("failed to start observability server", "error", err)
		return 1
	}

	rep, err := app.Run(ctx)
	if err != nil {
		slog.Error("initial scan failed", "error", err)
		return 1
	}

	if !*ui {
		app.PrintSummary(rep)
	}

	if !*watch && !*ui {
		if cfg.Alerts.FailOnCycles && len(rep.Cycles) > 0 {
			return exitCycles
		}
		return 0
	}

	if err := app.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}

	if *ui {
		if err := app.RunUI(rep); err != nil {
			slog.Error("failed to run UI", "error", err)
			return 1
		}
		return 0
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}

// runTrace answers a -trace query. It never opens history or writes
// output files.
func runTrace(ctx context.Context, cfg *config.Config, from, to string, w io.Writer) int {
	traceCfg := *cfg
	traceCfg.History.Enabled = false

	app, err := NewApp(&traceCfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer app.Close()

	if _, err := app.Inspect(ctx); err != nil {
		slog.Error("scan failed", "error", err)
		return 1
	}
	out, err := app.TraceImportChain(from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	fmt.Fprintln(w, out)
	return 0
}

// loadConfig falls back to built-in defaults when the default config file
// is absent. An explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path == defaultConfigPath && errors.IsCode(err, errors.CodeNotFound) {
			slog.Debug("no config file, using defaults", "path", path)
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func setupLogging(verbose, uiMode bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stderr
	if uiMode {
		// In UI mode, avoid terminal logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		} else {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err == nil {
				output = f
			} else {
				fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "marui", "marui.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "marui", "marui.log")
	}

	return "marui.log"
}
