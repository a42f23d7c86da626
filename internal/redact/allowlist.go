package redact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Allowlist contains path and content regex patterns excluded from
// secret detection.
type Allowlist struct {
	// Paths are file path regex patterns to ignore.
	Paths []string

	// Regexes are content regex patterns to ignore.
	Regexes []string
}

// LoadAllowlists merges the watch-root .gitleaks.toml and the user
// allowlist with union semantics. Missing files are ignored; files that
// exist but do not parse, or carry patterns that do not compile, error.
func LoadAllowlists(watchRoot, userPath string) (*Allowlist, error) {
	merged := &Allowlist{
		Paths:   []string{},
		Regexes: []string{},
	}

	if watchRoot != "" {
		rootFile := filepath.Join(watchRoot, ".gitleaks.toml")
		if root, err := loadTOML(rootFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merged.Paths = append(merged.Paths, root.Paths...)
			merged.Regexes = append(merged.Regexes, root.Regexes...)
		}
	}

	if userPath != "" {
		if user, err := loadTOML(userPath); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merged.Paths = append(merged.Paths, user.Paths...)
			merged.Regexes = append(merged.Regexes, user.Regexes...)
		}
	}

	return merged, nil
}

// loadTOML loads and validates a single allowlist file.
func loadTOML(path string) (*Allowlist, error) {
	var config struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range config.Allowlist.Paths {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid path pattern %q in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}

	for _, pattern := range config.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern %q in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{
		Paths:   config.Allowlist.Paths,
		Regexes: config.Allowlist.Regexes,
	}, nil
}

// applyAllowlist merges the allowlist into the Gitleaks config as one
// global allowlist entry. Patterns are pre-validated in loadTOML; a
// compile failure here is a programming error.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) {
	global := &gitleaksConfig.Allowlist{
		Description: "corpusd allowlist",
	}

	for _, pattern := range allowlist.Paths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("unvalidated path pattern reached applyAllowlist: " + pattern)
		}
		global.Paths = append(global.Paths, (*gitleaksRegexp.Regexp)(re))
	}

	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("unvalidated content pattern reached applyAllowlist: " + pattern)
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}

	global.StopWords = append(global.StopWords, allowlist.Regexes...)

	cfg.Allowlists = append(cfg.Allowlists, global)
}
