package signpanel

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/signpanel/internal/cooldown"
	"github.com/MrEthical07/signpanel/internal/notify"
)

// Config is the full panel configuration. Start from DefaultConfig and override fields.
type Config struct {
	Cooldown   CooldownConfig
	Backend    BackendConfig
	Storage    StorageConfig
	Notify     NotifyConfig
	Validation ValidationConfig
	Metrics    MetricsConfig
	Log        LogConfig
}

/*
====================================
COOLDOWN CONFIG
====================================
*/

// CooldownConfig tunes the per-channel send window and its rendering.
type CooldownConfig struct {
	Window       time.Duration
	TickInterval time.Duration
	// StoreTimeout bounds store calls made from render loops.
	StoreTimeout time.Duration
	KeyPrefix    string
	// DefaultLabel is shown on an enabled send control.
	DefaultLabel string
	// CountdownFormat receives the remaining whole seconds as its only verb.
	CountdownFormat string
}

/*
====================================
BACKEND CONFIG
====================================
*/

type BackendConfig struct {
	BaseURL       string
	Timeout       time.Duration
	VerifyPath    string
	SubmitPath    string
	CalculatePath string
	Headers       map[string][]string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageKind selects where cooldown entries and the login session are kept.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
	StorageRedis  StorageKind = "redis"
)

type StorageConfig struct {
	Kind     StorageKind
	FilePath string
	// RedisPrefix namespaces every key written to Redis.
	RedisPrefix string
	// RedisTTL, when > 0, is applied to every Redis write. It must outlast the cooldown window.
	RedisTTL   time.Duration
	SessionKey string
}

/*
====================================
NOTIFY CONFIG
====================================
*/

type NotifyConfig struct {
	Enabled         bool
	BufferSize      int
	DropIfFull      bool
	DefaultDuration time.Duration
}

/*
====================================
VALIDATION CONFIG
====================================
*/

type ValidationConfig struct {
	UsernamePattern string
	PasswordMinLen  int
	PasswordMaxLen  int
	CodeLength      int
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LOG CONFIG
====================================
*/

// LogConfig is used by Build only when no logger is supplied. Disabled means a no-op logger.
type LogConfig struct {
	Enabled     bool
	Environment string
	Level       string
	Format      string
}

// DefaultConfig returns the configuration the panel ships with.
func DefaultConfig() Config {
	return Config{
		Cooldown: CooldownConfig{
			Window:          cooldown.DefaultWindow,
			TickInterval:    cooldown.DefaultTickInterval,
			StoreTimeout:    cooldown.DefaultStoreTimeout,
			KeyPrefix:       cooldown.DefaultKeyPrefix,
			DefaultLabel:    cooldown.DefaultLabel,
			CountdownFormat: cooldown.DefaultCountdownFormat,
		},
		Backend: BackendConfig{
			BaseURL:       "http://127.0.0.1:8080",
			Timeout:       10 * time.Second,
			VerifyPath:    "/verify",
			SubmitPath:    "/post",
			CalculatePath: "/calculate",
		},
		Storage: StorageConfig{
			Kind:        StorageMemory,
			RedisPrefix: "signpanel",
			SessionKey:  "lynx_session",
		},
		Notify: NotifyConfig{
			Enabled:         true,
			BufferSize:      64,
			DropIfFull:      true,
			DefaultDuration: notify.DefaultDuration,
		},
		Validation: ValidationConfig{
			UsernamePattern: `^[a-zA-Z0-9_]{6,16}$`,
			PasswordMinLen:  6,
			PasswordMaxLen:  20,
			CodeLength:      6,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Log: LogConfig{
			Environment: "development",
			Level:       "info",
			Format:      "console",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Backend.Headers != nil {
		out.Backend.Headers = make(map[string][]string, len(cfg.Backend.Headers))
		for k, v := range cfg.Backend.Headers {
			out.Backend.Headers[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// Cooldown
	if c.Cooldown.Window <= 0 {
		return errors.New("Cooldown Window must be > 0")
	}
	if c.Cooldown.TickInterval <= 0 {
		return errors.New("Cooldown TickInterval must be > 0")
	}
	if c.Cooldown.TickInterval > c.Cooldown.Window {
		return errors.New("Cooldown TickInterval must be <= Window")
	}
	if c.Cooldown.StoreTimeout <= 0 {
		return errors.New("Cooldown StoreTimeout must be > 0")
	}
	if c.Cooldown.KeyPrefix == "" {
		return errors.New("Cooldown KeyPrefix must not be empty")
	}
	if strings.Count(c.Cooldown.CountdownFormat, "%d") != 1 {
		return errors.New("Cooldown CountdownFormat must contain exactly one %d")
	}

	// Backend
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Backend BaseURL must be an absolute http(s) URL")
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("Backend Timeout must be > 0")
	}
	for _, p := range []string{c.Backend.VerifyPath, c.Backend.SubmitPath, c.Backend.CalculatePath} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Backend paths must start with '/'")
		}
	}

	// Storage
	switch c.Storage.Kind {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if c.Storage.FilePath == "" {
			return errors.New("Storage FilePath is required for file storage")
		}
	default:
		return errors.New("Storage Kind must be 'memory', 'file' or 'redis'")
	}
	if c.Storage.RedisTTL < 0 {
		return errors.New("Storage RedisTTL must be >= 0")
	}
	if c.Storage.RedisTTL > 0 && c.Storage.RedisTTL < c.Cooldown.Window {
		return errors.New("Storage RedisTTL must be >= Cooldown Window")
	}
	if c.Storage.SessionKey == "" {
		return errors.New("Storage SessionKey must not be empty")
	}
	if strings.HasPrefix(c.Storage.SessionKey, c.Cooldown.KeyPrefix) {
		return errors.New("Storage SessionKey must not use the cooldown KeyPrefix")
	}

	// Notify
	if c.Notify.Enabled && c.Notify.BufferSize <= 0 {
		return errors.New("Notify BufferSize must be > 0 when enabled")
	}
	if c.Notify.DefaultDuration < 0 {
		return errors.New("Notify DefaultDuration must be >= 0")
	}

	// Validation
	if c.Validation.UsernamePattern == "" {
		return errors.New("Validation UsernamePattern must not be empty")
	}
	if _, err := regexp.Compile(c.Validation.UsernamePattern); err != nil {
		return errors.New("Validation UsernamePattern is not a valid regexp")
	}
	if c.Validation.PasswordMinLen < 1 {
		return errors.New("Validation PasswordMinLen must be >= 1")
	}
	if c.Validation.PasswordMaxLen < c.Validation.PasswordMinLen {
		return errors.New("Validation PasswordMaxLen must be >= PasswordMinLen")
	}
	if c.Validation.CodeLength < 1 {
		return errors.New("Validation CodeLength must be >= 1")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
