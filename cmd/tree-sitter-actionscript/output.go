package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/jcs090218/tree-sitter-actionscript/internal/analysis"
	"github.com/jcs090218/tree-sitter-actionscript/internal/index"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

var (
	colorOK    = color.New(color.FgGreen).SprintFunc()
	colorError = color.New(color.FgRed, color.Bold).SprintFunc()
	colorDim   = color.New(color.Faint).SprintFunc()
)

func newLogHandler(level, format string, w io.Writer) slog.Handler {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// fileOutput is one parsed file as printed by the parse command.
type fileOutput struct {
	Path     string             `json:"path" yaml:"path"`
	Language string             `json:"language" yaml:"language"`
	HasError bool               `json:"has_error" yaml:"has_error"`
	Duration string             `json:"duration" yaml:"duration"`
	Tree     string             `json:"tree" yaml:"tree"`
	Problems []analysis.Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
	Summary  *analysis.Summary  `json:"summary,omitempty" yaml:"summary,omitempty"`

	duration time.Duration
}

func newFileOutput(path string, res *index.Result) *fileOutput {
	out := &fileOutput{
		Path:     path,
		Language: res.Report.Language,
		HasError: res.Report.HasErrors(),
		Duration: res.Report.Duration.String(),
		duration: res.Report.Duration,
	}
	if res.Tree != nil {
		out.Tree = res.Tree.RootNode().String()
	}
	if res.Summary != nil {
		out.Problems = res.Summary.Problems
		summary := *res.Summary
		summary.Problems = nil
		out.Summary = &summary
	}
	return out
}

func validFormat(format string) bool {
	switch format {
	case "sexp", "yaml", "json":
		return true
	}
	return false
}

func writeOutputs(w io.Writer, outputs []*fileOutput, opts parseOptions) error {
	switch opts.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outputs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(outputs); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, out := range outputs {
		if !opts.quiet {
			fmt.Fprintln(w, out.Tree)
		}
		for _, p := range out.Problems {
			fmt.Fprintf(w, "%s:%s %s %s\n", out.Path, p.StartPoint, colorError(strings.ToUpper(p.Kind)), problemLabel(p))
		}
		if opts.showTime || opts.quiet || out.HasError {
			fmt.Fprintln(w, statusLine(out.Path, out.HasError, out.duration, opts.showTime))
		}
	}
	return nil
}

func problemLabel(p analysis.Problem) string {
	if p.Kind == analysis.ProblemMissing {
		return fmt.Sprintf("%q", p.Type)
	}
	if p.Text == "" {
		return p.StartPoint + "-" + p.EndPoint
	}
	return fmt.Sprintf("%q", p.Text)
}

func statusLine(path string, hasError bool, d time.Duration, showTime bool) string {
	status := colorOK("OK")
	if hasError {
		status = colorError("ERROR")
	}
	line := fmt.Sprintf("%-40s %s", path, status)
	if showTime {
		line += " " + colorDim(fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000))
	}
	return line
}

func describeLanguage(lang *sitter.Language, exts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:        %s\n", lang.Name())
	fmt.Fprintf(&b, "ABI version: %d\n", lang.Version())
	if len(exts) > 0 {
		fmt.Fprintf(&b, "Extensions:  %s\n", strings.Join(exts, ", "))
	}
	fmt.Fprintf(&b, "Symbols:     %d (%d tokens)\n", lang.SymbolCount(), lang.TokenCount())
	fmt.Fprintf(&b, "States:      %d\n", lang.StateCount())
	fmt.Fprintf(&b, "Productions: %d\n", lang.ProductionCount())
	fmt.Fprintf(&b, "Lex modes:   %d\n", lang.LexModeCount())

	var named []string
	for sym := sitter.Symbol(0); uint32(sym) < lang.SymbolCount(); sym++ {
		if lang.IsVisible(sym) && lang.IsNamed(sym) {
			named = append(named, lang.SymbolName(sym))
		}
	}
	if len(named) > 0 {
		fmt.Fprintf(&b, "Node types:  %s\n", strings.Join(named, ", "))
	}
	var fields []string
	for id := sitter.FieldID(1); uint32(id) <= lang.FieldCount(); id++ {
		fields = append(fields, lang.FieldNameForID(id))
	}
	if len(fields) > 0 {
		fmt.Fprintf(&b, "Fields:      %s\n", strings.Join(fields, ", "))
	}
	return b.String()
}

func formatHistory(records []*types.ParseRecord) string {
	var b strings.Builder
	for _, r := range records {
		status := colorOK("ok")
		if r.HasErrors() {
			status = colorError(fmt.Sprintf("%d errors, %d missing", r.Errors, r.Missing))
		}
		mode := "full"
		if r.Incremental {
			mode = "incremental"
		}
		fmt.Fprintf(&b, "%s  %s  %-11s %8s  %s  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			shortHash(r.Hash), mode, formatBytes(int64(r.Bytes)), r.Duration, status)
	}
	return b.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// formatBytes formats bytes to human readable string.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
