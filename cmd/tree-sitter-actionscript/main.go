// tree-sitter-actionscript parses ActionScript sources with an incremental,
// error-tolerant parser and serves the parser over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	_ "github.com/jcs090218/tree-sitter-actionscript/builtin"
	"github.com/jcs090218/tree-sitter-actionscript/internal/config"
	"github.com/jcs090218/tree-sitter-actionscript/internal/index"
	"github.com/jcs090218/tree-sitter-actionscript/internal/mcp"
	"github.com/jcs090218/tree-sitter-actionscript/internal/store"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/provider"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
)

var (
	version   = "0.1.0"
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tree-sitter-actionscript",
	Short: "Incremental, error-tolerant ActionScript parser",
	Long: `tree-sitter-actionscript parses ActionScript sources into concrete syntax
trees. Parsing never fails on malformed input: errors become ERROR and
MISSING nodes in the tree.

It supports:
- One-shot parsing with S-expression, YAML or JSON output
- Watching a project and re-parsing changed files incrementally
- A parse history stored in SQLite
- An MCP server exposing the parser as tools`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tree-sitter-actionscript %s\n", version)
		fmt.Printf("Language ABI: %d (compatible from %d)\n", sitter.LanguageVersion, sitter.MinCompatibleLanguageVersion)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <files...>",
	Short: "Parse files and print their syntax trees",
	Long: `Parse files and print their syntax trees. Exits with status 1 when any
file contains syntax errors.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := parseOptions{}
		opts.format, _ = cmd.Flags().GetString("format")
		opts.showTime, _ = cmd.Flags().GetBool("time")
		opts.quiet, _ = cmd.Flags().GetBool("quiet")
		opts.debug, _ = cmd.Flags().GetBool("debug-parse")
		opts.record, _ = cmd.Flags().GetBool("record")
		opts.language, _ = cmd.Flags().GetString("language")
		return runParse(cmd.Context(), args, opts)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch for file changes and re-parse incrementally",
	Long:  `Watch for file changes and re-parse modified files incrementally. If no path is provided, watches the current directory.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		debounce, _ := cmd.Flags().GetInt("debounce")
		initial, _ := cmd.Flags().GetBool("initial")
		return runWatch(path, debounce, initial)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("stdio")
		return runServe(stdio)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <file>",
	Short: "Show recorded parses of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return runHistory(cmd.Context(), args[0], limit)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show parse history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context())
	},
}

var languageCmd = &cobra.Command{
	Use:   "language [name]",
	Short: "Describe a registered language",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "actionscript"
		if len(args) > 0 {
			name = args[0]
		}
		lang, err := provider.Get(name)
		if err != nil {
			return err
		}
		fmt.Print(describeLanguage(lang, provider.DefaultRegistry.Extensions(name)))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigInit()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigValidate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	parseCmd.Flags().StringP("format", "f", "sexp", "output format (sexp, yaml, json)")
	parseCmd.Flags().BoolP("time", "t", false, "print parse duration")
	parseCmd.Flags().BoolP("quiet", "q", false, "only report files with errors")
	parseCmd.Flags().Bool("debug-parse", false, "log lexer and parser events to stderr")
	parseCmd.Flags().Bool("record", false, "record parses in the history database")
	parseCmd.Flags().StringP("language", "l", "", "language name (default: by file extension)")

	watchCmd.Flags().Int("debounce", 0, "debounce in milliseconds (default: from config)")
	watchCmd.Flags().Bool("initial", true, "parse all matching files before watching")

	serveCmd.Flags().Bool("stdio", false, "use stdio transport (for MCP)")

	historyCmd.Flags().IntP("limit", "n", 20, "maximum records")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(languageCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging configures slog from flags, falling back to the project
// config for flags that were not given.
func setupLogging(cmd *cobra.Command) {
	level, format := logLevel, logFormat
	if cwd, err := os.Getwd(); err == nil {
		if cfg, _, err := config.Load(cwd); err == nil {
			if !cmd.Flags().Changed("log-level") && cfg.Logging.Level != "" {
				level = cfg.Logging.Level
			}
			if !cmd.Flags().Changed("log-format") && cfg.Logging.Format != "" {
				format = cfg.Logging.Format
			}
		}
	}
	slog.SetDefault(slog.New(newLogHandler(level, format, os.Stderr)))
}

// parseLogger returns the hclog logger for --debug-parse.
func parseLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "parse",
		Level:  hclog.Trace,
		Output: os.Stderr,
		Color:  hclog.AutoColor,
	})
}

// loadProject loads the config of dir and opens the history store when
// enabled. The returned close function is never nil.
func loadProject(dir string, withStore bool) (*config.Config, *store.Store, func(), error) {
	cfg, warnings, err := config.Load(dir)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("failed to load config: %w", err)
	}
	for _, w := range warnings {
		slog.Debug(w)
	}
	if !withStore || !cfg.Store.Enabled {
		return cfg, nil, func() {}, nil
	}

	st := store.New()
	if err := st.Init(config.HistoryDBPath(dir, cfg)); err != nil {
		return nil, nil, func() {}, fmt.Errorf("failed to init store: %w", err)
	}
	return cfg, st, func() {
		if err := st.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}, nil
}

// errSyntax marks a parse run where some file had syntax errors.
var errSyntax = errors.New("syntax errors found")

type parseOptions struct {
	format   string
	showTime bool
	quiet    bool
	debug    bool
	record   bool
	language string
}

func runParse(ctx context.Context, files []string, opts parseOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !validFormat(opts.format) {
		return fmt.Errorf("invalid format: %s (valid: sexp, yaml, json)", opts.format)
	}

	cwd, _ := os.Getwd()
	cfg, st, closeStore, err := loadProject(cwd, opts.record)
	if err != nil {
		return err
	}
	defer closeStore()
	if opts.language != "" {
		cfg.Parser.Language = opts.language
	}

	idxCfg := index.Config{ProjectDir: cwd, Config: cfg, Store: st}
	if opts.debug {
		idxCfg.ParseLogger = parseLogger()
	}
	idx := index.New(idxCfg)

	var outputs []*fileOutput
	failed := false
	for _, file := range files {
		abs, _ := filepath.Abs(file)
		res, err := idx.ParseFile(ctx, abs)
		if err != nil {
			slog.Error("failed to parse file", "file", file, "error", err)
			failed = true
			continue
		}
		out := newFileOutput(file, res)
		if out.HasError {
			failed = true
		}
		if opts.quiet && !out.HasError {
			continue
		}
		outputs = append(outputs, out)
	}

	if err := writeOutputs(os.Stdout, outputs, opts); err != nil {
		return err
	}
	if failed {
		return errSyntax
	}
	return nil
}

func runWatch(path string, debounceMs int, initial bool) error {
	absPath, _ := filepath.Abs(path)

	cfg, st, closeStore, err := loadProject(absPath, true)
	if err != nil {
		return err
	}
	defer closeStore()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	idx := index.New(index.Config{ProjectDir: absPath, Config: cfg, Store: st})
	if initial {
		results, err := idx.IndexAll(ctx)
		if err != nil {
			slog.Warn("initial parse incomplete", "error", err)
		}
		for _, res := range results {
			if res.Report.HasErrors() {
				fmt.Printf("%s %s (%d errors, %d missing)\n", colorError("ERROR"), res.Report.Path, res.Report.Errors, res.Report.Missing)
			}
		}
	}

	watcher, err := index.NewWatcher(index.WatcherConfig{
		Indexer:      idx,
		DebounceTime: time.Duration(debounceMs) * time.Millisecond,
		OnResult: func(res *index.Result) {
			fmt.Println(statusLine(res.Report.Path, res.Report.HasErrors(), res.Report.Duration, true))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	fmt.Printf("Watching %s for changes (press Ctrl+C to stop)\n", absPath)

	// Run watcher (blocks until context is cancelled)
	if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watcher error: %w", err)
	}
	slog.Info("watcher stopped")
	return nil
}

func runServe(stdio bool) error {
	if !stdio {
		return errors.New("only stdio transport is supported, use --stdio")
	}
	cwd, _ := os.Getwd()
	slog.Info("starting MCP server", "stdio", stdio)

	cfg, st, closeStore, err := loadProject(cwd, true)
	if err != nil {
		return err
	}
	defer closeStore()

	server, err := mcp.New(mcp.Config{
		ProjectDir: cwd,
		Config:     cfg,
		Version:    version,
		Indexer:    index.New(index.Config{ProjectDir: cwd, Config: cfg, Store: st}),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("MCP server running (press Ctrl+C to stop)")
	return server.ServeStdio()
}

func runHistory(ctx context.Context, file string, limit int) error {
	cwd, _ := os.Getwd()
	_, st, closeStore, err := loadProject(cwd, true)
	if err != nil {
		return err
	}
	defer closeStore()
	if st == nil {
		return errors.New("parse history is disabled (store.enabled: false)")
	}

	key := file
	if abs, err := filepath.Abs(file); err == nil {
		if rel, err := filepath.Rel(cwd, abs); err == nil {
			key = filepath.ToSlash(rel)
		}
	}
	records, err := st.History(ctx, key, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No parses recorded for %s\n", key)
		return nil
	}
	fmt.Print(formatHistory(records))
	return nil
}

func runStatus(ctx context.Context) error {
	cwd, _ := os.Getwd()
	cfg, st, closeStore, err := loadProject(cwd, true)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Println("=== Parser Status ===")
	fmt.Printf("Languages:     %v\n", provider.List())
	if st == nil {
		fmt.Println("History:       disabled")
		return nil
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Database:      %s\n", config.HistoryDBPath(cwd, cfg))
	fmt.Printf("Files:         %d\n", stats.Files)
	fmt.Printf("Parses:        %d (%d with errors)\n", stats.Records, stats.ErrorParses)
	fmt.Printf("Database size: %s\n", formatBytes(stats.DBSizeBytes))
	if !stats.LastParsed.IsZero() {
		fmt.Printf("Last parsed:   %s\n", stats.LastParsed.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runConfigInit() error {
	cwd, _ := os.Getwd()
	cfg := config.DefaultConfig()

	if err := config.Save(cwd, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Created config at %s\n", config.ConfigPath(cwd))
	return nil
}

func runConfigValidate() error {
	cwd, _ := os.Getwd()

	cfg, warnings, err := config.Load(cwd)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	errs := config.Validate(cfg)
	for _, e := range errs {
		fmt.Printf("%s %v\n", colorError("Error:"), e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration has %d errors", len(errs))
	}

	if cfg.Parser.Language != "" && !provider.DefaultRegistry.Has(cfg.Parser.Language) {
		return fmt.Errorf("unknown parser language: %s (available: %v)", cfg.Parser.Language, provider.List())
	}

	fmt.Println(colorOK("Configuration is valid"))
	return nil
}
