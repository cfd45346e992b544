// Package config provides the process configuration for postboard: build
// information, environment getters and the TOML-backed Config structure.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

const envPrefix = "POSTBOARD_"

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv(envPrefix + "LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv(envPrefix+"DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv(envPrefix + "DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "/etc/postboard"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv(envPrefix + "LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

// Config holds everything the web server needs at startup.
type Config struct {
	Listen                 string         `toml:"listen"`
	Port                   int            `toml:"port"`
	Domain                 string         `toml:"domain"` // when set, other Host headers get 403
	TrustedProxies         []string       `toml:"trusted_proxies"`
	SessionMaxAge          int            `toml:"session_max_age"` // minutes
	RedisAddr              string         `toml:"redis_addr"`
	TimeLocation           string         `toml:"time_location"`
	LoginAttemptsPerMinute int            `toml:"login_attempts_per_minute"`
	Database               DatabaseConfig `toml:"database"`
}

// Default returns the configuration used when neither a file nor the
// environment say otherwise.
func Default() *Config {
	return &Config{
		Listen:                 "",
		Port:                   8080,
		SessionMaxAge:          60,
		TimeLocation:           "Local",
		LoginAttemptsPerMinute: 10,
		Database:               *GetDefaultDatabaseConfig(),
	}
}

// Load builds a Config from the defaults, the TOML file at path (skipped when
// path is empty or the file does not exist) and POSTBOARD_* environment
// variables, in that order.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := toml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
			}
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(envPrefix + "LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := os.LookupEnv(envPrefix + "DOMAIN"); ok {
		c.Domain = v
	}
	if v, ok := os.LookupEnv(envPrefix + "TRUSTED_PROXIES"); ok {
		c.TrustedProxies = splitList(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "REDIS_ADDR"); ok {
		c.RedisAddr = v
	}
	if v, ok := os.LookupEnv(envPrefix + "TIME_LOCATION"); ok {
		c.TimeLocation = v
	}
	ints := map[string]*int{
		"PORT":                      &c.Port,
		"SESSION_MAX_AGE":           &c.SessionMaxAge,
		"LOGIN_ATTEMPTS_PER_MINUTE": &c.LoginAttemptsPerMinute,
		"PG_PORT":                   &c.Database.Postgres.Port,
		"SQLITE_BUSY_TIMEOUT":       &c.Database.SQLite.BusyTimeout,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}
	c.Database.applyEnv()
	return nil
}

// Validate checks ranges and the database section.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session_max_age must be positive, got %d", c.SessionMaxAge)
	}
	if c.LoginAttemptsPerMinute < 0 {
		return fmt.Errorf("login_attempts_per_minute cannot be negative")
	}
	for _, proxy := range c.TrustedProxies {
		if !isIPOrCIDR(proxy) {
			return fmt.Errorf("trusted_proxies: %q is neither an IP nor a CIDR", proxy)
		}
	}
	if _, err := c.GetTimeLocation(); err != nil {
		return err
	}
	return c.Database.ValidateConfig()
}

// GetTimeLocation resolves TimeLocation, an empty value meaning the local zone.
func (c *Config) GetTimeLocation() (*time.Location, error) {
	if c.TimeLocation == "" || c.TimeLocation == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeLocation)
	if err != nil {
		return nil, fmt.Errorf("time_location %q: %w", c.TimeLocation, err)
	}
	return loc, nil
}

func (c *Config) GetSessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Minute
}

// splitList parses a comma separated env value, dropping empty items.
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func isIPOrCIDR(s string) bool {
	if net.ParseIP(s) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(s)
	return err == nil
}
