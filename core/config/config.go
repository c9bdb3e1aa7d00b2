// Package config reads the node configuration from the environment, an
// optional .env file and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	StoreJSON    = "json"
	StoreLevelDB = "leveldb"
)

type Config struct {
	Difficulty int
	MaxNonce   uint64

	Store    string
	DataFile string
	DBPath   string
	// DEK is the base64 AES-256 key for at-rest encryption of the LevelDB
	// store. Empty disables encryption.
	DEK string

	UploadDir string
	AuditLog  string

	ListenAddr      string
	JWTSecret       string
	ShutdownTimeout time.Duration
	// RateLimit is the per-client cap on register and verify calls per
	// minute. Zero disables it.
	RateLimit int

	LogLevel  slog.Level
	LogFormat string
}

// LoadDotEnv loads a .env file into the environment if one exists. Variables
// already set win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and validates the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Difficulty, err = getEnvInt("FILELEDGER_DIFFICULTY", 2)
	if err != nil {
		return nil, fmt.Errorf("FILELEDGER_DIFFICULTY: %w", err)
	}

	maxNonce, err := getEnvInt64("FILELEDGER_MAX_NONCE", 0)
	if err != nil {
		return nil, fmt.Errorf("FILELEDGER_MAX_NONCE: %w", err)
	}
	if maxNonce < 0 {
		return nil, fmt.Errorf("FILELEDGER_MAX_NONCE: must be >= 0, got %d", maxNonce)
	}
	cfg.MaxNonce = uint64(maxNonce)

	cfg.Store = strings.ToLower(getEnvDefault("FILELEDGER_STORE", StoreJSON))
	cfg.DataFile = getEnvDefault("FILELEDGER_DATA_FILE", "blockchain_data.json")
	cfg.DBPath = getEnvDefault("FILELEDGER_DB_PATH", "./fileledger_db")
	cfg.DEK = os.Getenv("FILELEDGER_DEK")
	cfg.UploadDir = getEnvDefault("FILELEDGER_UPLOAD_DIR", "uploads")
	cfg.AuditLog = os.Getenv("FILELEDGER_AUDIT_LOG")
	cfg.ListenAddr = getEnvDefault("FILELEDGER_LISTEN_ADDR", ":5000")
	cfg.JWTSecret = os.Getenv("FILELEDGER_JWT_SECRET")

	cfg.RateLimit, err = getEnvInt("FILELEDGER_RATE_LIMIT", 120)
	if err != nil {
		return nil, fmt.Errorf("FILELEDGER_RATE_LIMIT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("FILELEDGER_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FILELEDGER_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = strings.ToLower(getEnvDefault("LOG_FORMAT", "text"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Load calls it; call it again after
// ApplyFlags.
func (c *Config) Validate() error {
	if c.Difficulty < 0 || c.Difficulty > 64 {
		return fmt.Errorf("difficulty: %d out of range 0-64", c.Difficulty)
	}
	switch c.Store {
	case StoreJSON, StoreLevelDB:
	default:
		return fmt.Errorf("store: invalid value %q, expected %s or %s", c.Store, StoreJSON, StoreLevelDB)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT: invalid value %q, expected json or text", c.LogFormat)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("FILELEDGER_RATE_LIMIT: must be >= 0, got %d", c.RateLimit)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("FILELEDGER_SHUTDOWN_TIMEOUT: must be positive")
	}
	return nil
}

// RegisterFlags adds the storage and mining overrides to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("difficulty", 2, "proof-of-work difficulty (leading zero hex chars)")
	fs.String("store", StoreJSON, "chain store: json or leveldb")
	fs.String("data-file", "blockchain_data.json", "JSON chain file")
	fs.String("db-path", "./fileledger_db", "LevelDB directory")
}

// ApplyFlags overrides cfg with every flag the user set explicitly.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	if fs.Changed("difficulty") {
		if c.Difficulty, err = fs.GetInt("difficulty"); err != nil {
			return err
		}
	}
	if fs.Changed("store") {
		s, err := fs.GetString("store")
		if err != nil {
			return err
		}
		c.Store = strings.ToLower(s)
	}
	if fs.Changed("data-file") {
		if c.DataFile, err = fs.GetString("data-file"); err != nil {
			return err
		}
	}
	if fs.Changed("db-path") {
		if c.DBPath, err = fs.GetString("db-path"); err != nil {
			return err
		}
	}
	return c.Validate()
}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use Go format: 500ms, 5s, 1m)", val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level %q, expected debug, info, warn or error", level)
	}
}
