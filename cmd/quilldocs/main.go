package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/quilldocs/internal/config"
	"git.home.luguber.info/inful/quilldocs/internal/events"
	"git.home.luguber.info/inful/quilldocs/internal/observability"
	"git.home.luguber.info/inful/quilldocs/internal/pipeline"
	"git.home.luguber.info/inful/quilldocs/internal/render/quillexec"
	"git.home.luguber.info/inful/quilldocs/internal/version"
)

// Exit codes: 0 clean build, 1 fatal diagnostics, 2 environmental failure.
const (
	exitOK          = 0
	exitDiagnostics = 1
	exitEnvironment = 2
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"quilldocs.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output  string `short:"o" help:"Output directory, overrides the configured one"`
		NoCache bool   `help:"Skip the persistent render cache for this run"`
	} `cmd:"" help:"Build the documentation site data"`

	Check struct {
	} `cmd:"" help:"Validate sources and references without rendering or writing output"`

	Version struct {
	} `cmd:"" help:"Print the quilldocs version"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch kctx.Command() {
	case "build":
		os.Exit(run(pipeline.Options{NoCache: CLI.Build.NoCache}))
	case "check":
		os.Exit(run(pipeline.Options{CheckOnly: true}))
	case "version":
		fmt.Println(version.String())
		os.Exit(exitOK)
	}
}

func run(opts pipeline.Options) int {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitEnvironment
	}
	if CLI.Build.Output != "" {
		cfg.Output.Dir = CLI.Build.Output
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, metrics)
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.Connect(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			slog.Warn("Diagnostic event publishing disabled", "error", err)
		} else {
			defer publisher.Close()
		}
	}

	quill := quillexec.New(cfg.Render.QuillBin)
	p := pipeline.New(cfg, metrics, quill, quill, publisher)

	result, err := p.Run(ctx, opts)
	if err != nil {
		slog.Error("Build aborted", "error", err)
		return exitEnvironment
	}

	printSummary(result)
	if result.Failed() {
		return exitDiagnostics
	}
	return exitOK
}

// printSummary writes the human-readable diagnostic summary to stderr, one
// line per diagnostic, sorted.
func printSummary(result *pipeline.Result) {
	for _, d := range result.Report.All() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	for kind, n := range result.Report.CountByKind() {
		slog.Info("Diagnostic summary", "kind", string(kind), "count", n)
	}
}

func serveMetrics(listen string, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	slog.Info("Serving metrics", "listen", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		slog.Warn("Metrics listener stopped", "error", err)
	}
}
