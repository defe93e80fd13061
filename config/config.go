// ABOUTME: Configuration for the sitegen server and CLI from .env, an optional YAML file, and SITEGEN_* variables.
// ABOUTME: Precedence is environment over YAML over defaults; remote binds must be opted into explicitly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389-research/sitegen/artifact"
	"github.com/2389-research/sitegen/store"
)

var (
	ErrUnknownDriver      = errors.New("unknown database driver")
	ErrBadKeepalive       = errors.New("keepalive interval must be positive")
	ErrArtifactIncomplete = errors.New("artifact publishing needs an endpoint, bucket, and access keys")
	ErrNonLoopbackBind    = errors.New(
		"SITEGEN_BIND is a non-loopback address but SITEGEN_ALLOW_REMOTE is not true; set SITEGEN_ALLOW_REMOTE=true to allow remote access",
	)
)

// Config holds everything the server and CLI need. DefaultCredits is
// granted to users created without an explicit amount.
type Config struct {
	Home           string         `yaml:"home"`
	Bind           string         `yaml:"bind"`
	AllowRemote    bool           `yaml:"allowRemote"`
	PublicBaseURL  string         `yaml:"publicBaseURL"`
	Database       DatabaseConfig `yaml:"database"`
	Keepalive      time.Duration  `yaml:"keepalive"`
	DefaultCredits int            `yaml:"defaultCredits"`
	LLM            LLMConfig      `yaml:"llm"`
	Stylesheet     string         `yaml:"stylesheet"`
	FileCacheSize  int            `yaml:"fileCacheSize"`
	Artifact       ArtifactConfig `yaml:"artifact"`
}

// DatabaseConfig selects the datastore driver. An empty sqlite DSN means
// sitegen.db under Home.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LLMConfig overrides provider detection.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ArtifactConfig enables publishing completed versions to object storage.
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// S3 converts to the publisher's configuration.
func (a ArtifactConfig) S3() artifact.S3Config {
	return artifact.S3Config{
		Endpoint:  a.Endpoint,
		Region:    a.Region,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		Bucket:    a.Bucket,
		Prefix:    a.Prefix,
		UseSSL:    a.UseSSL,
	}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return &Config{
		Home:           filepath.Join(home, ".sitegen"),
		Bind:           "127.0.0.1:7780",
		Database:       DatabaseConfig{Driver: store.DriverSQLite},
		Keepalive:      10 * time.Second,
		DefaultCredits: 10,
		FileCacheSize:  128,
		Artifact:       ArtifactConfig{Region: "us-east-1", Bucket: "sitegen-versions", UseSSL: true},
	}
}

// LoadDotEnv loads the given .env files (".env" when none are named) without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration. path names a YAML file; when empty,
// SITEGEN_CONFIG is consulted and a missing setting means defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SITEGEN_CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Home, "SITEGEN_HOME")
	setString(&c.Bind, "SITEGEN_BIND")
	setString(&c.PublicBaseURL, "SITEGEN_PUBLIC_BASE_URL")
	setString(&c.Database.Driver, "SITEGEN_DB_DRIVER")
	setString(&c.Database.DSN, "SITEGEN_DB_DSN")
	setString(&c.LLM.Provider, "SITEGEN_DEFAULT_PROVIDER")
	setString(&c.LLM.Model, "SITEGEN_DEFAULT_MODEL")
	setString(&c.Stylesheet, "SITEGEN_STYLESHEET")
	setString(&c.Artifact.Endpoint, "SITEGEN_ARTIFACT_S3_ENDPOINT")
	setString(&c.Artifact.Region, "SITEGEN_ARTIFACT_S3_REGION")
	setString(&c.Artifact.AccessKey, "SITEGEN_ARTIFACT_S3_ACCESS_KEY")
	setString(&c.Artifact.SecretKey, "SITEGEN_ARTIFACT_S3_SECRET_KEY")
	setString(&c.Artifact.Bucket, "SITEGEN_ARTIFACT_S3_BUCKET")
	setString(&c.Artifact.Prefix, "SITEGEN_ARTIFACT_S3_PREFIX")

	for _, b := range []struct {
		dst *bool
		key string
	}{
		{&c.AllowRemote, "SITEGEN_ALLOW_REMOTE"},
		{&c.Artifact.Enabled, "SITEGEN_ARTIFACT_ENABLED"},
		{&c.Artifact.UseSSL, "SITEGEN_ARTIFACT_S3_USE_SSL"},
	} {
		if err := setBool(b.dst, b.key); err != nil {
			return err
		}
	}
	for _, n := range []struct {
		dst *int
		key string
	}{
		{&c.DefaultCredits, "SITEGEN_DEFAULT_CREDITS"},
		{&c.FileCacheSize, "SITEGEN_FILE_CACHE_SIZE"},
	} {
		if err := setInt(n.dst, n.key); err != nil {
			return err
		}
	}
	if v := strings.TrimSpace(os.Getenv("SITEGEN_KEEPALIVE")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SITEGEN_KEEPALIVE: %w", err)
		}
		c.Keepalive = d
	}
	return nil
}

func (c *Config) fillDerived() {
	if c.Database.Driver == store.DriverSQLite && c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.Home, "sitegen.db")
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://" + c.Bind
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %s", c.Database.Driver)
	}
	if c.Keepalive <= 0 {
		return fmt.Errorf("%w: %s", ErrBadKeepalive, c.Keepalive)
	}
	if c.DefaultCredits < 0 {
		return fmt.Errorf("default credits must not be negative: %d", c.DefaultCredits)
	}
	if c.Artifact.Enabled {
		a := c.Artifact
		if a.Endpoint == "" || a.Bucket == "" || a.AccessKey == "" || a.SecretKey == "" {
			return ErrArtifactIncomplete
		}
	}
	if !c.AllowRemote && !isLoopback(c.Bind) {
		return fmt.Errorf("%w: SITEGEN_BIND=%s", ErrNonLoopbackBind, c.Bind)
	}
	return nil
}

// isLoopback accepts 127.0.0.0/8, ::1 and localhost. An address without a
// host such as ":7780" listens on every interface.
func isLoopback(bind string) bool {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		*dst = true
		return nil
	case "no", "n", "off":
		*dst = false
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
