// Package redact scrubs secrets from chunk content before it reaches the
// vector store using the Gitleaks SDK's default ruleset.
//
// Detected secrets are replaced with [REDACTED:rule-id:preview] markers.
// The marker keeps enough context for embeddings to stay useful while the
// secret itself never leaves the machine. Allowlists (a .gitleaks.toml in
// the watch root, plus an optional user file) exclude known-safe patterns.
package redact

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zricethezav/gitleaks/v8/detect"
	"go.uber.org/zap"
)

// previewLen is how many leading characters of a secret survive in the
// redaction marker.
const previewLen = 4

// Finding describes one detected secret. The secret value itself is not
// retained beyond the preview.
type Finding struct {
	RuleID      string
	Description string
	Line        int
	StartColumn int
	EndColumn   int
	Preview     string
}

// Result holds redacted content and what was found.
type Result struct {
	Content  string
	Findings []Finding
	Duration time.Duration
}

// HasRedactions reports whether any secret was replaced.
func (r Result) HasRedactions() bool {
	return len(r.Findings) > 0
}

// RuleCounts returns findings grouped by rule id.
func (r Result) RuleCounts() map[string]int {
	counts := make(map[string]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.RuleID]++
	}
	return counts
}

// Config locates the allowlist sources.
type Config struct {
	// WatchRoot is scanned for a .gitleaks.toml allowlist.
	WatchRoot string

	// AllowlistPath is an optional user allowlist TOML file.
	AllowlistPath string
}

// Redactor detects and redacts secrets. The Gitleaks ruleset is compiled
// once at construction; a Redactor is reused across files.
type Redactor struct {
	detector *detect.Detector
	logger   *zap.Logger
}

// New builds a redactor with the default Gitleaks config merged with any
// allowlists found at the configured locations.
func New(cfg Config, logger *zap.Logger) (*Redactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	allowlist, err := LoadAllowlists(cfg.WatchRoot, cfg.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlists: %w", err)
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}

	if len(allowlist.Paths) > 0 || len(allowlist.Regexes) > 0 {
		applyAllowlist(&detector.Config, allowlist)
		logger.Info("redaction allowlist loaded",
			zap.Int("path_patterns", len(allowlist.Paths)),
			zap.Int("content_patterns", len(allowlist.Regexes)),
		)
	}

	return &Redactor{detector: detector, logger: logger}, nil
}

// Redact scans content and replaces every detected secret with a marker.
// Replacement is by secret value, so repeated occurrences of the same
// secret are all redacted. filePath scopes path-based allowlist entries;
// the file is never read from disk.
func (r *Redactor) Redact(content, filePath string) Result {
	start := time.Now()

	gitleaksFindings := r.detector.Detect(detect.Fragment{
		Raw:      content,
		FilePath: filePath,
	})

	result := Result{
		Content:  content,
		Findings: make([]Finding, 0, len(gitleaksFindings)),
	}

	// Longer secrets first so a secret containing another is replaced
	// before its substring.
	sort.Slice(gitleaksFindings, func(i, j int) bool {
		return len(gitleaksFindings[i].Secret) > len(gitleaksFindings[j].Secret)
	})

	for _, f := range gitleaksFindings {
		if f.Secret == "" {
			continue
		}

		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Secret))
		result.Content = strings.ReplaceAll(result.Content, f.Secret, marker)

		result.Findings = append(result.Findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
			StartColumn: f.StartColumn,
			EndColumn:   f.EndColumn,
			Preview:     preview(f.Secret),
		})
		secretsRedacted.WithLabelValues(f.RuleID).Inc()
	}

	result.Duration = time.Since(start)
	redactDuration.Observe(result.Duration.Seconds())

	return result
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen]
}
