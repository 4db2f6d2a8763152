// Package report persists run outcomes: a machine-readable JSON document and
// a human-readable markdown summary, both named after the run timestamp.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/config"
)

// Writer persists run reports under a single directory.
type Writer struct {
	dir    string
	prefix string
	logger *zap.Logger
}

// NewWriter creates the report directory eagerly.
func NewWriter(cfg config.ReportConfig, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "stealth_run"
	}
	return &Writer{dir: cfg.Dir, prefix: prefix, logger: logger.Named("report")}, nil
}

// basename derives the timestamped file stem shared by both artifacts.
func (w *Writer) basename(ts time.Time) string {
	return fmt.Sprintf("%s_%s", w.prefix, ts.Format("20060102_150405"))
}

// Write persists the JSON report and its markdown summary, returning the JSON
// path.
func (w *Writer) Write(report *schemas.RunReport) (string, error) {
	stem := w.basename(report.StartedAt)

	jsonPath := filepath.Join(w.dir, stem+".json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	mdPath := filepath.Join(w.dir, stem+"_summary.md")
	if err := os.WriteFile(mdPath, []byte(Markdown(report)), 0o644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}

	w.logger.Info("Report written.",
		zap.String("json", jsonPath), zap.String("summary", mdPath))
	return jsonPath, nil
}

// Markdown renders the run summary grouped by library: aggregate counts first,
// then a per-target table per library.
func Markdown(report *schemas.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Stealth Evaluation Run %s\n\n", report.RunID)
	fmt.Fprintf(&b, "- Mode: %s\n", report.Mode)
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finished: %s\n", report.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Results: %d\n\n", len(report.Results))

	libs := report.Libraries()

	b.WriteString("## Summary\n\n")
	b.WriteString("| Library | Success | Partial | Failed | Total |\n")
	b.WriteString("|---------|--------:|--------:|-------:|------:|\n")
	for _, lib := range libs {
		s := report.Summary[lib]
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n",
			lib, s.Success, s.Partial, s.Failed, s.Total())
	}
	b.WriteString("\n")

	byLibrary := make(map[string][]schemas.TestResult)
	for _, res := range report.Results {
		byLibrary[res.Library] = append(byLibrary[res.Library], res)
	}

	for _, lib := range libs {
		fmt.Fprintf(&b, "## %s\n\n", lib)
		b.WriteString("| Target | Status | Capture | Proxy | Device | Elapsed |\n")
		b.WriteString("|--------|--------|---------|-------|--------|--------:|\n")

		// Rows keep the execution order the run recorded.
		for _, res := range byLibrary[lib] {
			capture := "-"
			if res.CaptureMethod != "" {
				capture = res.CaptureMethod
			}
			proxy := "-"
			if res.DetectedIP != "" {
				proxy = res.DetectedIP
				if res.ProxyConfirmed {
					proxy += " (confirmed)"
				}
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				res.Target, res.Status, capture, proxy, res.DeviceName,
				res.Elapsed.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	return b.String()
}
