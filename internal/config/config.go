package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect
	// survey behavior, keep these in sync:
	// - CLI flags in internal/cli/run.go
	// - viper bindings in internal/config/loader.go
	Sources Sources `mapstructure:"sources"`
	Survey  Survey  `mapstructure:"survey"`
	Storage Storage `mapstructure:"storage"`
	Output  Output  `mapstructure:"output"`
	Runtime Runtime `mapstructure:"runtime"`
}

type Sources struct {
	// Dirs lists local repository directories to survey (see --dirs).
	// Values may be provided as repeated flags and/or comma-separated lists.
	Dirs []string `mapstructure:"dirs"`

	// GitURLs lists git clone URLs to survey (see --git-urls).
	GitURLs []string `mapstructure:"git_urls"`

	// GithubQuery samples repositories matching a GitHub search query
	// (see --github-query).
	GithubQuery string `mapstructure:"github_query"`

	// GithubLanguage constrains the GitHub sample to one language tag
	// (see --github-language).
	GithubLanguage string `mapstructure:"github_language"`

	// GithubMaxKB limits the size of sampled GitHub repositories in
	// kilobytes (see --github-max-kb). 0 means no limit.
	GithubMaxKB int `mapstructure:"github_max_kb"`

	// GithubSort is the GitHub search sort order (see --github-sort).
	GithubSort string `mapstructure:"github_sort"`

	// GithubToken authenticates GitHub API requests (see --github-token,
	// CODESURVEY_SOURCES_GITHUB_TOKEN).
	GithubToken string `mapstructure:"github_token"`
}

type Survey struct {
	// Match defines the features to survey as name=pattern regular
	// expressions (repeatable; see --match).
	Match []string `mapstructure:"match"`

	// Glob selects the files the regex analyzer inspects, matched against
	// base names (see --glob).
	Glob string `mapstructure:"glob"`

	// MaxRepos stops the run after this many repositories (see
	// --max-repos). 0 means unlimited.
	MaxRepos int `mapstructure:"max_repos"`

	// MaxCodes stops starting unit analyses after this many units (see
	// --max-codes). 0 means unlimited.
	MaxCodes int `mapstructure:"max_codes"`

	// Reanalyze ignores previously recorded results when deciding what
	// work remains (see --reanalyze).
	Reanalyze bool `mapstructure:"reanalyze"`

	// NoSaveOccurrences records only occurrence counts, not the
	// occurrence payloads (see --no-save-occurrences).
	NoSaveOccurrences bool `mapstructure:"no_save_occurrences"`

	// DiscardCodeFeatures deletes unit-level records once a repository's
	// aggregates are computed (see --discard-code-features).
	DiscardCodeFeatures bool `mapstructure:"discard_code_features"`
}

type Storage struct {
	// DBPath is the SQLite completion database (see --db).
	DBPath string `mapstructure:"db_path"`
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see
	// --console-format). Allowed values: text, json, ndjson.
	ConsoleFormat string `mapstructure:"console_format"`

	// Report writes a Markdown report to this path (see --report).
	Report string `mapstructure:"report"`

	// Out writes structured output to this path (see --out).
	Out string `mapstructure:"out"`

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the
	// --out file extension.
	OutFormat string `mapstructure:"out_format"`

	// Emit writes additional structured event streams to stdout (see
	// --emit). Allowed values: json, ndjson.
	Emit []string `mapstructure:"emit"`

	// NoConsole suppresses the console sink (see --no-console). Use with
	// --emit/--out/--report for machine-readable output.
	NoConsole bool `mapstructure:"no_console"`
}

type Runtime struct {
	// Workers bounds the number of concurrently pending survey jobs (see
	// --workers). Must be >= 1.
	Workers int `mapstructure:"workers"`

	// Timeout is the global timeout for the run (see --timeout). Must be
	// > 0.
	Timeout time.Duration `mapstructure:"timeout"`

	// FailFast halts the run on the first failure instead of logging and
	// continuing (see --fail-fast).
	FailFast bool `mapstructure:"fail_fast"`

	// LogLevel sets log verbosity (see --log-level). Allowed values:
	// debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

func New() *Config {
	return &Config{
		Survey: Survey{
			Glob: "*",
		},
		Storage: Storage{
			DBPath: "codesurvey.db",
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Workers:  5,
			Timeout:  30 * time.Minute,
			LogLevel: "info",
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Sources.Dirs = splitCommaList(c.Sources.Dirs)
	c.Sources.GitURLs = splitCommaList(c.Sources.GitURLs)
	c.Output.Emit = splitCommaList(c.Output.Emit)

	// Source validation
	if len(c.Sources.Dirs) == 0 && len(c.Sources.GitURLs) == 0 &&
		c.Sources.GithubQuery == "" && c.Sources.GithubLanguage == "" {
		return errors.New("at least one of --dirs, --git-urls, --github-query, or --github-language must be provided")
	}

	// Survey validation
	if len(c.Survey.Match) == 0 {
		return errors.New("at least one --match feature definition (name=pattern) must be provided")
	}
	if _, err := ParseFeaturePatterns(c.Survey.Match); err != nil {
		return err
	}
	if c.Survey.Glob == "" {
		c.Survey.Glob = "*"
	}
	if c.Survey.MaxRepos < 0 {
		return errors.New("--max-repos must be >= 0")
	}
	if c.Survey.MaxCodes < 0 {
		return errors.New("--max-codes must be >= 0")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for _, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v == "" {
			return errors.New("--emit must be one of: json, ndjson")
		}
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else {
			if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
				return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
			}
		}
	}

	// Storage validation
	if c.Storage.DBPath == "" {
		return errors.New("--db must not be empty")
	}

	// Runtime validation
	if c.Runtime.Workers <= 0 {
		return errors.New("--workers must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	c.Runtime.LogLevel = normalizeEnumValue(c.Runtime.LogLevel)
	if c.Runtime.LogLevel == "" {
		c.Runtime.LogLevel = "info"
	}
	switch c.Runtime.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported --log-level: %s (must be one of: debug, info, warn, error)", c.Runtime.LogLevel)
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseFeaturePatterns parses values of the form "name=pattern" into a
// feature-name to regex-source mapping.
//
// Notes:
// - Entries are taken verbatim from repeated flags; no comma splitting,
//   since regex patterns may contain commas.
// - This validates syntax only; patterns are compiled when the analyzer is
//   constructed.
// - Duplicate feature names are rejected here so the failure happens before
//   any work starts.
func ParseFeaturePatterns(values []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, raw := range values {
		name, pattern, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --match entry %q: expected name=pattern", raw)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid --match entry %q: expected non-empty feature name", raw)
		}
		if pattern == "" {
			return nil, fmt.Errorf("invalid --match entry %q: expected non-empty pattern", raw)
		}
		if _, exists := out[name]; exists {
			return nil, fmt.Errorf("duplicate --match feature name %q", name)
		}
		out[name] = pattern
	}
	return out, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
