package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marui/internal/catalog"
	"marui/internal/config"
	"marui/internal/discovery"
	"marui/internal/errors"
	"marui/internal/graph"
	"marui/internal/history"
	"marui/internal/observability"
	"marui/internal/output"
	"marui/internal/parser"
	"marui/internal/watcher"
)

// Report is the outcome of one pass of the pipeline.
type Report struct {
	Catalog   *catalog.Catalog
	Cycles    []graph.Cycle
	Metrics   map[string]graph.ModuleMetrics
	Stats     discovery.Stats
	EdgeCount int
	Change    *history.Change
	Duration  time.Duration
}

type App struct {
	Config *config.Config

	root    string
	scanner *discovery.Scanner
	history *history.Store
	health  *observability.Server
	out     io.Writer

	mu   sync.Mutex
	last *Report

	teaProgram    *tea.Program
	activeWatcher *watcher.Watcher
}

func NewApp(cfg *config.Config) (*App, error) {
	extractor, err := parser.NewExtractor(cfg.Discovery.Mode)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "resolve project root").
			WithContext(errors.CtxPath, cfg.ProjectRoot)
	}

	scanner, err := discovery.NewScanner(root, discovery.Options{
		Extractor:    extractor,
		ExcludeDirs:  cfg.Exclude.Dirs,
		ExcludeFiles: cfg.Exclude.Files,
		RequireInit:  cfg.RequireInit(),
		CacheSize:    cfg.Discovery.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		root:    root,
		scanner: scanner,
		out:     os.Stdout,
	}

	if cfg.History.Enabled {
		path := cfg.History.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		store, err := history.Open(path)
		if err != nil {
			return nil, err
		}
		a.history = store
	}

	return a, nil
}

// SetOutput redirects the terminal summary.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

// StartObservability serves /metrics and /health on the configured address.
func (a *App) StartObservability(ctx context.Context) error {
	if !a.Config.Observability.Enabled {
		return nil
	}
	a.health = observability.NewServer(a.Config.Observability.Address)
	return a.health.Start(ctx)
}

func (a *App) Close() error {
	if a.activeWatcher != nil {
		_ = a.activeWatcher.Close()
	}
	if a.health != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.health.Stop(ctx)
	}
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}

func (a *App) Scan(ctx context.Context) (*discovery.Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "App.Scan", trace.WithAttributes(
		attribute.String("project.root", a.root),
	))
	defer span.End()

	start := time.Now()
	res, err := a.scanner.Discover(ctx)
	observability.AnalysisDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("files", res.Stats.Files),
		attribute.Int("cache_hits", res.Stats.CacheHits),
	)
	slog.Debug("scan complete", "files", res.Stats.Files, "packages", res.Stats.Packages,
		"skipped", res.Stats.Skipped, "cache_hits", res.Stats.CacheHits)
	return res, nil
}

func (a *App) Analyze(ctx context.Context, res *discovery.Result) *Report {
	_, span := observability.Tracer.Start(ctx, "App.Analyze")
	defer span.End()

	start := time.Now()
	cycles := graph.FindCycles(res.Catalog)
	observability.AnalysisDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	rep := &Report{
		Catalog:   res.Catalog,
		Cycles:    cycles,
		Metrics:   graph.ComputeModuleMetrics(res.Catalog),
		Stats:     res.Stats,
		EdgeCount: graph.EdgeCount(graph.Edges(res.Catalog)),
	}

	observability.GraphModules.Set(float64(res.Catalog.Len()))
	observability.GraphEdges.Set(float64(rep.EdgeCount))
	observability.CyclesFound.Set(float64(len(cycles)))
	if a.health != nil {
		a.health.RecordScan(res.Catalog.Len(), len(cycles))
	}

	span.SetAttributes(
		attribute.Int("modules", res.Catalog.Len()),
		attribute.Int("edges", rep.EdgeCount),
		attribute.Int("cycles", len(cycles)),
	)
	return rep
}

// Run executes scan, detection, output generation and history recording.
// Output and history failures are logged and do not fail the run.
func (a *App) Run(ctx context.Context) (*Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "App.Run")
	defer span.End()

	start := time.Now()
	rep, err := a.Inspect(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.GenerateOutputs(rep); err != nil {
		slog.Error("failed to generate outputs", "error", err)
	}
	if err := a.RecordHistory(ctx, rep); err != nil {
		slog.Error("failed to record history", "error", err)
	}
	rep.Duration = time.Since(start)
	return rep, nil
}

// Inspect scans and analyzes the project without writing outputs or
// history. The report becomes the basis for TraceImportChain.
func (a *App) Inspect(ctx context.Context) (*Report, error) {
	start := time.Now()
	res, err := a.Scan(ctx)
	if err != nil {
		return nil, err
	}
	rep := a.Analyze(ctx, res)
	rep.Duration = time.Since(start)

	a.mu.Lock()
	a.last = rep
	a.mu.Unlock()
	return rep, nil
}

func (a *App) GenerateOutputs(rep *Report) error {
	if path := a.Config.Output.DOT; path != "" {
		gen := output.NewDOTGenerator(rep.Catalog)
		gen.SetModuleMetrics(rep.Metrics)
		dot, err := gen.Generate(rep.Cycles)
		if err != nil {
			return err
		}
		if err := writeOutput(path, dot); err != nil {
			return err
		}
	}

	if path := a.Config.Output.TSV; path != "" {
		gen := output.NewTSVGenerator(rep.Catalog)
		tsv, err := gen.Generate()
		if err != nil {
			return err
		}
		if len(rep.Cycles) > 0 {
			cyclesTSV, err := gen.GenerateCycles(rep.Cycles)
			if err != nil {
				return err
			}
			tsv = strings.TrimRight(tsv, "\n") + "\n\n" + strings.TrimRight(cyclesTSV, "\n") + "\n"
		}
		if err := writeOutput(path, tsv); err != nil {
			return err
		}
	}

	if path := a.Config.Output.Mermaid; path != "" {
		mermaid, err := output.NewMermaidGenerator(rep.Catalog).Generate(rep.Cycles)
		if err != nil {
			return err
		}
		if err := writeOutput(path, mermaid); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output %q: %w", path, err)
	}
	return nil
}

// RecordHistory saves rep and attaches the cycle diff against the previous
// run of the same project.
func (a *App) RecordHistory(ctx context.Context, rep *Report) error {
	if a.history == nil {
		return nil
	}
	ctx, span := observability.Tracer.Start(ctx, "App.RecordHistory")
	defer span.End()

	key := discovery.ProjectName(a.root)
	prev, err := a.history.LatestRun(ctx, key)
	if err != nil {
		observability.HistoryWritesTotal.WithLabelValues("error").Inc()
		return err
	}

	run := history.Run{
		ProjectKey:  key,
		CommitHash:  history.ResolveCommit(ctx, a.root),
		ModuleCount: rep.Catalog.Len(),
		EdgeCount:   rep.EdgeCount,
		Cycles:      make([]string, 0, len(rep.Cycles)),
	}
	for _, c := range rep.Cycles {
		run.Cycles = append(run.Cycles, c.String())
	}

	if _, err := a.history.SaveRun(ctx, run); err != nil {
		observability.HistoryWritesTotal.WithLabelValues("error").Inc()
		return err
	}
	observability.HistoryWritesTotal.WithLabelValues("ok").Inc()

	change := history.Diff(prev, run)
	rep.Change = &change
	return nil
}

func (a *App) PrintSummary(rep *Report) {
	if !a.Config.Alerts.Terminal {
		return
	}
	w := a.out

	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Update: %d files, %d modules, %d edges in %v\n",
		rep.Stats.Files, rep.Catalog.Len(), rep.EdgeCount, rep.Duration.Round(time.Millisecond))

	if len(rep.Cycles) > 0 {
		fmt.Fprintf(w, "FOUND %d CIRCULAR IMPORTS:\n", len(rep.Cycles))
		for _, c := range rep.Cycles {
			fmt.Fprintf(w, "   %s\n", c)
		}
	} else {
		fmt.Fprintln(w, output.NoCyclesMessage)
	}

	if rep.Stats.Duplicates > 0 {
		fmt.Fprintf(w, "Duplicate module names: %d (first match wins)\n", rep.Stats.Duplicates)
	}

	if rep.Change != nil && !rep.Change.Empty() {
		for _, c := range rep.Change.Introduced {
			fmt.Fprintf(w, "+ new cycle: %s\n", c)
		}
		for _, c := range rep.Change.Resolved {
			fmt.Fprintf(w, "- resolved:  %s\n", c)
		}
	}

	if leaders := fanInLeaders(rep.Metrics, 3); len(leaders) > 0 {
		fmt.Fprintf(w, "Highest fan-in: %s\n", strings.Join(leaders, ", "))
	}
}

func fanInLeaders(metrics map[string]graph.ModuleMetrics, limit int) []string {
	type leader struct {
		name  string
		value int
	}
	var all []leader
	for name, m := range metrics {
		if m.FanIn > 0 {
			all = append(all, leader{name, m.FanIn})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].value != all[j].value {
			return all[i].value > all[j].value
		}
		return all[i].name < all[j].name
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, 0, len(all))
	for _, l := range all {
		out = append(out, fmt.Sprintf("%s (%d)", l.name, l.value))
	}
	return out
}

// HandleChanges re-runs the pipeline after a watcher batch.
func (a *App) HandleChanges(paths []string) {
	slog.Info("detected changes", "count", len(paths))

	rep, err := a.Run(context.Background())
	if err != nil {
		slog.Error("rescan failed", "error", err)
		return
	}

	a.mu.Lock()
	program := a.teaProgram
	a.mu.Unlock()

	if program != nil {
		msg := updateMsg{
			cycles:      rep.Cycles,
			moduleCount: rep.Catalog.Len(),
			fileCount:   rep.Stats.Files,
		}
		if rep.Change != nil {
			msg.introduced = rep.Change.Introduced
		}
		program.Send(msg)
	} else {
		a.PrintSummary(rep)
	}

	if a.Config.Alerts.Beep && len(rep.Cycles) > 0 {
		fmt.Fprint(a.out, "\a")
	}
}

// TraceImportChain renders the shortest import chain between two modules
// of the last run.
func (a *App) TraceImportChain(from, to string) (string, error) {
	a.mu.Lock()
	rep := a.last
	a.mu.Unlock()
	if rep == nil {
		return "", errors.New(errors.CodeInternal, "no scan has completed")
	}

	if _, ok := rep.Catalog.Resolve(from); !ok {
		return "", errors.New(errors.CodeNotFound, fmt.Sprintf("source module not found: %s", from)).
			WithContext(errors.CtxModule, from)
	}
	if _, ok := rep.Catalog.Resolve(to); !ok {
		return "", errors.New(errors.CodeNotFound, fmt.Sprintf("target module not found: %s", to)).
			WithContext(errors.CtxModule, to)
	}

	chain, ok := graph.FindImportChain(rep.Catalog, from, to)
	if !ok {
		return "", errors.New(errors.CodeNotFound, fmt.Sprintf("no import chain found from %s to %s", from, to))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Import chain: %s -> %s\n\n", from, to)
	for i, module := range chain {
		b.WriteString(module)
		b.WriteString("\n")
		if i < len(chain)-1 {
			b.WriteString("  -> ")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	w.SetRateLimit(a.Config.Watch.MaxRescansPerSecond)
	a.activeWatcher = w
	return w.Watch([]string{a.root})
}

func (a *App) RunUI(initial *Report) error {
	p := tea.NewProgram(initialModel(func() { a.HandleChanges(nil) }), tea.WithAltScreen())
	a.mu.Lock()
	a.teaProgram = p
	a.mu.Unlock()

	if initial != nil {
		msg := updateMsg{
			cycles:      initial.Cycles,
			moduleCount: initial.Catalog.Len(),
			fileCount:   initial.Stats.Files,
		}
		if initial.Change != nil {
			msg.introduced = initial.Change.Introduced
		}
		go p.Send(msg)
	}

	_, err := p.Run()
	return err
}
