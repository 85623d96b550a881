// Package config loads the parley server and CLI settings from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvAddr              = "PARLEY_ADDR"
	EnvDBDriver          = "PARLEY_DB_DRIVER"
	EnvDBDSN             = "PARLEY_DB_DSN"
	EnvRedisAddr         = "PARLEY_REDIS_ADDR"
	EnvRedisPassword     = "PARLEY_REDIS_PASSWORD"
	EnvRedisDB           = "PARLEY_REDIS_DB"
	EnvSessionTTL        = "PARLEY_SESSION_TTL"
	EnvScenarios         = "PARLEY_SCENARIOS"
	EnvLogLevel          = "PARLEY_LOG_LEVEL"
	EnvLogFormat         = "PARLEY_LOG_FORMAT"
	EnvMenuStep          = "PARLEY_MENU_STEP"
	EnvHelpStep          = "PARLEY_HELP_STEP"
	EnvFallbackStartStep = "PARLEY_FALLBACK_START_STEP"
	EnvDefaultScenario   = "PARLEY_DEFAULT_SCENARIO"
	EnvCacheSize         = "PARLEY_CACHE_SIZE"
	EnvCacheTTL          = "PARLEY_CACHE_TTL"
	EnvCacheIdle         = "PARLEY_CACHE_IDLE"
	EnvMaxInputSize      = "PARLEY_MAX_INPUT_SIZE"
	EnvEncryptionKey     = "PARLEY_ENCRYPTION_KEY"
	EnvEncryptionOldKeys = "PARLEY_ENCRYPTION_OLD_KEYS"
	EnvRedactVariables   = "PARLEY_REDACT_VARIABLES"
)

// Config holds the process-wide settings.
type Config struct {
	Addr string

	// DBDriver is sqlite3 or postgres. An empty DBDSN keeps scenarios in memory.
	DBDriver string
	DBDSN    string

	// RedisAddr switches conversation contexts to Redis when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Scenarios is a YAML or JSON file seeded into the scenario store at startup.
	Scenarios string

	LogLevel  string
	LogFormat string

	MenuStep          int64
	HelpStep          int64
	FallbackStartStep int64
	DefaultScenario   int64

	CacheSize int
	CacheTTL  time.Duration
	CacheIdle time.Duration

	MaxInputSize int

	// EncryptionKey is a base64 AES-256 key sealing stored contexts. Old keys
	// only decrypt, for rotation.
	EncryptionKey     string
	EncryptionOldKeys []string
	// RedactVariables are patterns of variable names masked when a context is displayed.
	RedactVariables []string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:              ":8080",
		DBDriver:          "sqlite3",
		SessionTTL:        24 * time.Hour,
		LogLevel:          "info",
		LogFormat:         "text",
		MenuStep:          2,
		HelpStep:          12,
		FallbackStartStep: 1,
		DefaultScenario:   1,
		CacheSize:         1000,
		CacheTTL:          time.Hour,
		CacheIdle:         30 * time.Minute,
		MaxInputSize:      4096,
	}
}

// Load reads the given .env files (".env" when none is named) and then the
// environment. A missing .env file is not an error.
func Load(logger *slog.Logger, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load env file: %w", err)
		}
		logger.Debug("No .env file loaded", "err", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv overlays the variables found through lookup on Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.str(EnvAddr, &cfg.Addr)
	p.str(EnvDBDriver, &cfg.DBDriver)
	p.str(EnvDBDSN, &cfg.DBDSN)
	p.str(EnvRedisAddr, &cfg.RedisAddr)
	p.str(EnvRedisPassword, &cfg.RedisPassword)
	p.integer(EnvRedisDB, &cfg.RedisDB)
	p.duration(EnvSessionTTL, &cfg.SessionTTL)
	p.str(EnvScenarios, &cfg.Scenarios)
	p.str(EnvLogLevel, &cfg.LogLevel)
	p.str(EnvLogFormat, &cfg.LogFormat)
	p.id(EnvMenuStep, &cfg.MenuStep)
	p.id(EnvHelpStep, &cfg.HelpStep)
	p.id(EnvFallbackStartStep, &cfg.FallbackStartStep)
	p.id(EnvDefaultScenario, &cfg.DefaultScenario)
	p.integer(EnvCacheSize, &cfg.CacheSize)
	p.duration(EnvCacheTTL, &cfg.CacheTTL)
	p.duration(EnvCacheIdle, &cfg.CacheIdle)
	p.integer(EnvMaxInputSize, &cfg.MaxInputSize)
	p.str(EnvEncryptionKey, &cfg.EncryptionKey)
	p.list(EnvEncryptionOldKeys, &cfg.EncryptionOldKeys)
	p.list(EnvRedactVariables, &cfg.RedactVariables)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported db driver %q (want sqlite3 or postgres)", c.DBDriver))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q (want text or json)", c.LogFormat))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("redis db must not be negative"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("session ttl must not be negative"))
	}
	if c.DefaultScenario <= 0 {
		errs = append(errs, errors.New("default scenario must be positive"))
	}
	if c.CacheSize < 0 || c.CacheTTL < 0 || c.CacheIdle < 0 {
		errs = append(errs, errors.New("cache settings must not be negative"))
	}
	if c.MaxInputSize <= 0 {
		errs = append(errs, errors.New("max input size must be positive"))
	}
	if len(c.EncryptionOldKeys) > 0 && c.EncryptionKey == "" {
		errs = append(errs, errors.New("old encryption keys need an active encryption key"))
	}
	return errors.Join(errs...)
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

// list splits a comma separated value, dropping blanks.
func (p *parser) list(key string, dst *[]string) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (p *parser) id(key string, dst *int64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid step id %q", key, v))
		return
	}
	*dst = n
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}
