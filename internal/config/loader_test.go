package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.DBPath != "codesurvey.db" {
		t.Fatalf("default DBPath: got %q", cfg.Storage.DBPath)
	}
	if cfg.Runtime.Workers != 5 {
		t.Fatalf("default Workers: got %d", cfg.Runtime.Workers)
	}
	if cfg.Runtime.Timeout != 30*time.Minute {
		t.Fatalf("default Timeout: got %s", cfg.Runtime.Timeout)
	}
	if cfg.Output.ConsoleFormat != "text" {
		t.Fatalf("default ConsoleFormat: got %q", cfg.Output.ConsoleFormat)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CODESURVEY_RUNTIME_WORKERS", "9")
	t.Setenv("CODESURVEY_RUNTIME_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Runtime.Workers != 9 {
		t.Fatalf("Workers from env: got %d want 9", cfg.Runtime.Workers)
	}
	if cfg.Runtime.LogLevel != "debug" {
		t.Fatalf("LogLevel from env: got %q want debug", cfg.Runtime.LogLevel)
	}
}

func TestLoad_GithubTokenFallsBackToGithubTokenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_TOKEN", "tok-from-env")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sources.GithubToken != "tok-from-env" {
		t.Fatalf("GithubToken: got %q want tok-from-env", cfg.Sources.GithubToken)
	}
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CODESURVEY_RUNTIME_WORKERS", "9")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var workers int
	fs.IntVar(&workers, "workers", 5, "")
	if err := fs.Parse([]string{"--workers", "3"}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Runtime.Workers != 3 {
		t.Fatalf("Workers: got %d want 3", cfg.Runtime.Workers)
	}
}
