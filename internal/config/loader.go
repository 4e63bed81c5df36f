package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Load resolves the configuration with the precedence CLI flags >
// environment variables > .codesurvey env file > defaults. If flags is nil,
// only env vars, the env file, and defaults are used.
//
// Environment variables use the CODESURVEY_ prefix with underscores, e.g.
// CODESURVEY_SOURCES_GITHUB_TOKEN or CODESURVEY_RUNTIME_WORKERS.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Default values (mirrors New).
	v.SetDefault("survey.glob", "*")
	v.SetDefault("storage.db_path", "codesurvey.db")
	v.SetDefault("output.console_format", "text")
	v.SetDefault("runtime.workers", 5)
	v.SetDefault("runtime.timeout", 30*time.Minute)
	v.SetDefault("runtime.log_level", "info")

	// Environment variables
	v.SetEnvPrefix("CODESURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("sources.github_token", "CODESURVEY_SOURCES_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("storage.db_path", "CODESURVEY_STORAGE_DB_PATH")
	_ = v.BindEnv("runtime.workers", "CODESURVEY_RUNTIME_WORKERS")
	_ = v.BindEnv("runtime.log_level", "CODESURVEY_RUNTIME_LOG_LEVEL")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("sources.dirs", flags.Lookup("dirs"))
		_ = v.BindPFlag("sources.git_urls", flags.Lookup("git-urls"))
		_ = v.BindPFlag("sources.github_query", flags.Lookup("github-query"))
		_ = v.BindPFlag("sources.github_language", flags.Lookup("github-language"))
		_ = v.BindPFlag("sources.github_max_kb", flags.Lookup("github-max-kb"))
		_ = v.BindPFlag("sources.github_sort", flags.Lookup("github-sort"))
		_ = v.BindPFlag("sources.github_token", flags.Lookup("github-token"))

		_ = v.BindPFlag("survey.match", flags.Lookup("match"))
		_ = v.BindPFlag("survey.glob", flags.Lookup("glob"))
		_ = v.BindPFlag("survey.max_repos", flags.Lookup("max-repos"))
		_ = v.BindPFlag("survey.max_codes", flags.Lookup("max-codes"))
		_ = v.BindPFlag("survey.reanalyze", flags.Lookup("reanalyze"))
		_ = v.BindPFlag("survey.no_save_occurrences", flags.Lookup("no-save-occurrences"))
		_ = v.BindPFlag("survey.discard_code_features", flags.Lookup("discard-code-features"))

		_ = v.BindPFlag("storage.db_path", flags.Lookup("db"))

		_ = v.BindPFlag("output.console_format", flags.Lookup("console-format"))
		_ = v.BindPFlag("output.report", flags.Lookup("report"))
		_ = v.BindPFlag("output.out", flags.Lookup("out"))
		_ = v.BindPFlag("output.out_format", flags.Lookup("out-format"))
		_ = v.BindPFlag("output.emit", flags.Lookup("emit"))
		_ = v.BindPFlag("output.no_console", flags.Lookup("no-console"))

		_ = v.BindPFlag("runtime.workers", flags.Lookup("workers"))
		_ = v.BindPFlag("runtime.timeout", flags.Lookup("timeout"))
		_ = v.BindPFlag("runtime.fail_fast", flags.Lookup("fail-fast"))
		_ = v.BindPFlag("runtime.log_level", flags.Lookup("log-level"))
	}

	// Optional env-format config file in the working directory.
	v.SetConfigName(".codesurvey")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if the file doesn't exist

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
