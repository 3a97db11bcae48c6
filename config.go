package syncplus

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Default polling policy.
const (
	DefaultPollInterval  = 5 * time.Millisecond
	DefaultWarnEvery     = 250  // ~1.25s at the default poll interval
	DefaultWarnEveryLong = 1000 // ~5s at the default poll interval
)

// Environment variables read by DefaultConfig.
const (
	EnvPollInterval  = "SYNCPLUS_POLL_INTERVAL"
	EnvWarnEvery     = "SYNCPLUS_WARN_EVERY"
	EnvWarnEveryLong = "SYNCPLUS_WARN_EVERY_LONG"
)

// ErrInvalidConfig is returned (wrapped) when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid syncplus config")

// Config is the polling and diagnostic policy of a lock.
type Config struct {
	// PollInterval is the sleep between two acquisition attempts.
	PollInterval time.Duration
	// WarnEvery is the number of failed attempts between two wait
	// diagnostics on Mutex, NamedMutex and RWLock readers.
	WarnEvery int
	// WarnEveryLong is the number of failed attempts between two wait
	// diagnostics on RWLock writers.
	WarnEveryLong int
}

// DefaultConfig returns the built-in policy with environment overrides applied.
func DefaultConfig() Config {
	return Config{
		PollInterval:  GetDurationEnvOrDefault(EnvPollInterval, DefaultPollInterval),
		WarnEvery:     GetIntEnvOrDefault(EnvWarnEvery, DefaultWarnEvery),
		WarnEveryLong: GetIntEnvOrDefault(EnvWarnEveryLong, DefaultWarnEveryLong),
	}
}

// Validate reports whether every field is usable.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval %v must be positive", ErrInvalidConfig, c.PollInterval)
	}
	if c.WarnEvery <= 0 {
		return fmt.Errorf("%w: warn_every %d must be positive", ErrInvalidConfig, c.WarnEvery)
	}
	if c.WarnEveryLong <= 0 {
		return fmt.Errorf("%w: warn_every_long %d must be positive", ErrInvalidConfig, c.WarnEveryLong)
	}
	return nil
}

// withDefaults fills zero fields from the built-in policy.
func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.WarnEvery <= 0 {
		c.WarnEvery = DefaultWarnEvery
	}
	if c.WarnEveryLong <= 0 {
		c.WarnEveryLong = DefaultWarnEveryLong
	}
	return c
}

// fileConfig is the YAML shape of a Config. Durations are strings so that
// the day unit of ParseDuration is accepted.
type fileConfig struct {
	PollInterval  string `yaml:"poll_interval"`
	WarnEvery     *int   `yaml:"warn_every"`
	WarnEveryLong *int   `yaml:"warn_every_long"`
}

// LoadConfig reads a YAML policy file. Keys missing from the file keep the
// values of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML policy document on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := DefaultConfig()
	if fc.PollInterval != "" {
		d, err := ParseDuration(fc.PollInterval)
		if err != nil {
			return Config{}, fmt.Errorf("%w: poll_interval: %v", ErrInvalidConfig, err)
		}
		cfg.PollInterval = d
	}
	if fc.WarnEvery != nil {
		cfg.WarnEvery = *fc.WarnEvery
	}
	if fc.WarnEveryLong != nil {
		cfg.WarnEveryLong = *fc.WarnEveryLong
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var defaultConfig atomic.Pointer[Config]

func init() {
	cfg := DefaultConfig().withDefaults()
	defaultConfig.Store(&cfg)
}

// SetDefaultConfig replaces the policy used by locks that were not given one
// with WithConfig. Zero fields fall back to the built-in values.
func SetDefaultConfig(cfg Config) {
	cfg = cfg.withDefaults()
	defaultConfig.Store(&cfg)
}

// CurrentDefaultConfig returns the policy used by unconfigured locks.
func CurrentDefaultConfig() Config {
	return *defaultConfig.Load()
}

// ParseDuration is time.ParseDuration with an additional "d" unit for days.
// Days may be fractional, e.g. "1.5d" or "-1.25d12h".
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1024 {
		return 0, fmt.Errorf("parse duration: input string too long")
	}

	var b strings.Builder
	numStart := -1
	for i := 0; i < len(s); i++ {
		ch := s[i]
		isNum := (ch >= '0' && ch <= '9') || ch == '.' || (i == 0 && (ch == '-' || ch == '+'))
		if isNum {
			if numStart < 0 {
				numStart = i
			}
			continue
		}
		if ch == 'd' && numStart >= 0 {
			days, err := strconv.ParseFloat(s[numStart:i], 64)
			if err != nil {
				return 0, fmt.Errorf("parse duration %q: %w", s, err)
			}
			b.WriteString(strconv.FormatFloat(days*24, 'f', -1, 64))
			b.WriteByte('h')
			numStart = -1
			continue
		}
		if numStart >= 0 {
			b.WriteString(s[numStart:i])
			numStart = -1
		}
		b.WriteByte(ch)
	}
	if numStart >= 0 {
		b.WriteString(s[numStart:])
	}
	return time.ParseDuration(b.String())
}

// GetDurationEnvOrDefault returns the duration in environment variable key,
// or def when it is unset or unparsable.
func GetDurationEnvOrDefault(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// GetIntEnvOrDefault returns the integer in environment variable key,
// or def when it is unset or unparsable.
func GetIntEnvOrDefault(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
