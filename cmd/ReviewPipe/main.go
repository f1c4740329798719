package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/api"
	"github.com/BTreeMap/ReviewPipe/internal/genai"
	"github.com/BTreeMap/ReviewPipe/internal/lockfile"
	"github.com/BTreeMap/ReviewPipe/internal/store"
	"github.com/BTreeMap/ReviewPipe/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ReviewPipe state data
	DefaultStateDir = "/var/lib/reviewpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "reviewpipe.db"
)

func main() {
	initializeLogger(os.Getenv("LOG_LEVEL"))

	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(flags.StateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lock.Release()

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ReviewPipe with configured modules")
	slog.Debug("Final configuration", "state_dir", flags.StateDir, "dsn_set", flags.DSN != "", "redis_set", flags.RedisURL != "", "api_addr", flags.APIAddr)
	if err := api.Run(ctx, storeOpts, genaiOpts, apiOpts); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("ReviewPipe failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("ReviewPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	RedisURL      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	APIAddr       string
	StageConfig   string
	SystemPrompt  string
	SessionMaxAge time.Duration
	DebugLLM      bool
}

// Flags holds the effective settings after command line overrides.
type Flags struct {
	StateDir      string
	DSN           string
	RedisURL      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	APIAddr       string
	StageConfig   string
	SystemPrompt  string
	SessionMaxAge time.Duration
	DebugLLM      bool
}

// initializeLogger sets up structured logging; LOG_LEVEL picks the level
// and defaults to debug.
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil || level == "" {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      util.GetenvDefault("REVIEWPIPE_STATE_DIR", DefaultStateDir),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   util.GetenvDefault("OPENAI_MODEL", genai.DefaultModel),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		APIAddr:       util.GetenvDefault("API_ADDR", api.DefaultServerAddress),
		StageConfig:   os.Getenv("STAGE_CONFIG"),
		SystemPrompt:  os.Getenv("SYSTEM_PROMPT_FILE"),
		SessionMaxAge: util.ParseDurationEnv("SESSION_MAX_AGE", store.DefaultSessionMaxAge),
		DebugLLM:      util.ParseBoolEnv("REVIEWPIPE_DEBUG", false),
	}

	slog.Debug("environment variables loaded",
		"REVIEWPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"STAGE_CONFIG", config.StageConfig,
		"SESSION_MAX_AGE", config.SessionMaxAge)

	return config
}

// parseCommandLineFlags applies command line overrides on top of config.
// Without an explicit DSN the SQLite database lives in the state directory.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	var f Flags
	fs.StringVar(&f.StateDir, "state-dir", config.StateDir, "state directory for ReviewPipe data (overrides $REVIEWPIPE_STATE_DIR)")
	fs.StringVar(&f.DSN, "db-dsn", config.DatabaseURL, "database DSN, PostgreSQL URL or SQLite path (overrides $DATABASE_URL)")
	fs.StringVar(&f.RedisURL, "redis-url", config.RedisURL, "Redis URL for the session store (overrides $REDIS_URL)")
	fs.StringVar(&f.OpenAIKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&f.OpenAIModel, "openai-model", config.OpenAIModel, "chat model (overrides $OPENAI_MODEL)")
	fs.StringVar(&f.OpenAIBaseURL, "openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible endpoint (overrides $OPENAI_BASE_URL)")
	fs.StringVar(&f.APIAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&f.StageConfig, "stage-config", config.StageConfig, "YAML stage configuration (overrides $STAGE_CONFIG)")
	fs.StringVar(&f.SystemPrompt, "system-prompt-file", config.SystemPrompt, "system prompt file (overrides $SYSTEM_PROMPT_FILE)")
	fs.DurationVar(&f.SessionMaxAge, "session-max-age", config.SessionMaxAge, "idle time before a session is removed (overrides $SESSION_MAX_AGE)")
	fs.BoolVar(&f.DebugLLM, "debug-llm", config.DebugLLM, "write LLM requests and responses under the state directory (overrides $REVIEWPIPE_DEBUG)")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if f.DSN == "" {
		f.DSN = filepath.Join(f.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", f.DSN)
	}

	slog.Debug("flags parsed",
		"stateDir", f.StateDir,
		"dbDSN_set", f.DSN != "",
		"redisURL_set", f.RedisURL != "",
		"openaiKeySet", f.OpenAIKey != "",
		"apiAddr", f.APIAddr,
		"stageConfig", f.StageConfig,
		"sessionMaxAge", f.SessionMaxAge)
	return f, nil
}

// ensureDirectoriesExist creates the state directory and, for file-based
// databases, the directory holding the database file.
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{flags.StateDir}
	if store.DetectDSNType(flags.DSN) != "postgres" && flags.DSN != ":memory:" {
		dirs = append(dirs, filepath.Dir(strings.TrimPrefix(flags.DSN, "file:")))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, store.DefaultDirPermissions); err != nil {
			slog.Error("Failed to create directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if store.DetectDSNType(flags.DSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		storeOpts = append(storeOpts, store.WithPostgresDSN(flags.DSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", flags.DSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(flags.DSN))
	}
	if flags.RedisURL != "" {
		storeOpts = append(storeOpts, store.WithRedisURL(flags.RedisURL), store.WithSessionTTL(flags.SessionMaxAge))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if flags.OpenAIKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(flags.OpenAIKey))
	}
	if flags.OpenAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(flags.OpenAIModel))
	}
	if flags.OpenAIBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(flags.OpenAIBaseURL))
	}
	if flags.DebugLLM {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(flags.StateDir))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{api.WithSessionMaxAge(flags.SessionMaxAge)}
	if flags.APIAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(flags.APIAddr))
	}
	if flags.StageConfig != "" {
		apiOpts = append(apiOpts, api.WithStageConfig(flags.StageConfig))
	}
	if flags.SystemPrompt != "" {
		apiOpts = append(apiOpts, api.WithSystemPromptFile(flags.SystemPrompt))
	}
	return apiOpts
}
