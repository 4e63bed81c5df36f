package config

import (
	"reflect"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := New()
	cfg.Sources.Dirs = []string{"./repos"}
	cfg.Survey.Match = []string{"todo=TODO"}
	return cfg
}

func TestValidate_NormalizesCommaDelimitedDirs(t *testing.T) {
	cfg := validConfig()
	cfg.Sources.Dirs = []string{"./a, ./b", "./c", ",,"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	want := []string{"./a", "./b", "./c"}
	if !reflect.DeepEqual(cfg.Sources.Dirs, want) {
		t.Fatalf("Dirs normalized mismatch: got %v want %v", cfg.Sources.Dirs, want)
	}
}

func TestValidate_PreservesCommasInMatchPatterns(t *testing.T) {
	cfg := validConfig()
	cfg.Survey.Match = []string{`digits=[0-9]{2,4}`}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	want := []string{`digits=[0-9]{2,4}`}
	if !reflect.DeepEqual(cfg.Survey.Match, want) {
		t.Fatalf("Match mismatch: got %v want %v", cfg.Survey.Match, want)
	}
}

func TestValidate_RequiresSource(t *testing.T) {
	cfg := New()
	cfg.Survey.Match = []string{"todo=TODO"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when no source is configured")
	}
	if !strings.Contains(err.Error(), "--dirs") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RequiresMatch(t *testing.T) {
	cfg := New()
	cfg.Sources.Dirs = []string{"./repos"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no --match is configured")
	}
}

func TestValidate_RejectsNegativeCaps(t *testing.T) {
	cfg := validConfig()
	cfg.Survey.MaxRepos = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative --max-repos")
	}

	cfg = validConfig()
	cfg.Survey.MaxCodes = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative --max-codes")
	}
}

func TestValidate_ConsoleFormatEnum(t *testing.T) {
	cfg := validConfig()
	cfg.Output.ConsoleFormat = " NDJSON "

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if cfg.Output.ConsoleFormat != "ndjson" {
		t.Fatalf("expected normalized ndjson, got %q", cfg.Output.ConsoleFormat)
	}

	cfg = validConfig()
	cfg.Output.ConsoleFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported console format")
	}
}

func TestValidate_InfersOutFormatFromExtension(t *testing.T) {
	cases := map[string]string{
		"results.json":   "json",
		"results.ndjson": "ndjson",
		"results.jsonl":  "ndjson",
	}
	for path, want := range cases {
		cfg := validConfig()
		cfg.Output.Out = path
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate(%s) returned error: %v", path, err)
		}
		if cfg.Output.OutFormat != want {
			t.Fatalf("OutFormat for %s: got %q want %q", path, cfg.Output.OutFormat, want)
		}
	}

	cfg := validConfig()
	cfg.Output.Out = "results.xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for uninferrable extension")
	}

	cfg = validConfig()
	cfg.Output.Out = "results"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing extension")
	}
}

func TestValidate_RuntimeBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Runtime.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}

	cfg = validConfig()
	cfg.Runtime.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero timeout")
	}

	cfg = validConfig()
	cfg.Runtime.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log level")
	}
}

func TestParseFeaturePatterns(t *testing.T) {
	got, err := ParseFeaturePatterns([]string{
		"todo=(?i)todo",
		`tuple=\(\s*\w+,\s*\w+\s*\)`,
	})
	if err != nil {
		t.Fatalf("ParseFeaturePatterns returned error: %v", err)
	}
	if got["todo"] != "(?i)todo" {
		t.Fatalf("unexpected parsed value: %v", got)
	}
	if got["tuple"] != `\(\s*\w+,\s*\w+\s*\)` {
		t.Fatalf("pattern with comma not preserved: %v", got)
	}
}

func TestParseFeaturePatterns_Errors(t *testing.T) {
	cases := []struct {
		name   string
		values []string
	}{
		{"missing separator", []string{"todo"}},
		{"empty name", []string{"=TODO"}},
		{"empty pattern", []string{"todo="}},
		{"duplicate name", []string{"todo=a", "todo=b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseFeaturePatterns(tc.values); err == nil {
				t.Fatalf("expected error for %v", tc.values)
			}
		})
	}
}
