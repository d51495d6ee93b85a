// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/repochat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete repochat configuration.
// Credentials are not part of it; they live in the keystore.
type Config struct {
	Provider     ProviderConfig     `toml:"provider" json:"provider" yaml:"provider"`
	Repository   RepositoryConfig   `toml:"repository" json:"repository" yaml:"repository"`
	Storage      StorageConfig      `toml:"storage" json:"storage" yaml:"storage"`
	Conversation ConversationConfig `toml:"conversation" json:"conversation" yaml:"conversation"`
	Log          LogConfig          `toml:"log" json:"log" yaml:"log"`
}

// ProviderConfig selects and tunes the AI backend.
type ProviderConfig struct {
	// Kind is one of echo, openrouter, ollama, anthropic, openai
	Kind        string `toml:"kind" json:"kind" yaml:"kind"`
	Model       string `toml:"model" json:"model" yaml:"model"`
	BaseURL     string `toml:"base_url" json:"base_url" yaml:"base_url"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
}

// Timeout returns the provider HTTP timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// RepositoryConfig holds the non-secret repository settings. Owner, name and
// token are resolved from the keystore.
type RepositoryConfig struct {
	Branch            string  `toml:"branch" json:"branch" yaml:"branch"`
	BaseURL           string  `toml:"base_url" json:"base_url" yaml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	TimeoutSecs       int     `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
}

// Timeout returns the repository HTTP timeout.
func (r RepositoryConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// StorageConfig selects the message persistence backend.
type StorageConfig struct {
	// Backend is one of sqlite, file, memory
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Path of the database or log file. Empty selects a file in ConfigDir.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RetentionDays prunes older messages when history loads. 0 disables.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`
}

// Retention returns the retention period, zero when disabled.
func (s StorageConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// ConversationConfig tunes the orchestrator.
type ConversationConfig struct {
	ContextWindow int    `toml:"context_window" json:"context_window" yaml:"context_window"`
	CommandPrefix string `toml:"command_prefix" json:"command_prefix" yaml:"command_prefix"`

	// RenderMarkdown renders assistant replies when stdout is a terminal
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown" yaml:"render_markdown"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`

	// File receives log output. "stderr" is accepted; empty selects a file in ConfigDir.
	File string `toml:"file" json:"file" yaml:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default context window and retention values.
const (
	DefaultContextWindow = 20
	DefaultRetentionDays = 30
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind:        "echo",
			TimeoutSecs: 120,
		},
		Repository: RepositoryConfig{
			Branch:            "main",
			RequestsPerSecond: 5,
			TimeoutSecs:       30,
		},
		Storage: StorageConfig{
			Backend:       "sqlite",
			RetentionDays: DefaultRetentionDays,
		},
		Conversation: ConversationConfig{
			ContextWindow:  DefaultContextWindow,
			CommandPrefix:  "/",
			RenderMarkdown: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the repochat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".repochat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// candidatePaths lists config files in load order.
func candidatePaths() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.toml"),
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.yml"),
	}, nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the first config file found in ConfigDir
// (TOML, then JSON, then YAML) and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	paths, err := candidatePaths()
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	secure(path)

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	secure(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(cfg *Config, path string) error {
	secure(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

// secure tightens permissions on a config file, warning when it cannot.
func secure(path string) {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
}

// LoadFromPath loads configuration from a specific file path with full
// validation. The format follows the extension; anything else is TOML.
// File values overlay Default().
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// fillDefaults restores defaults for fields a file explicitly left empty.
// RetentionDays and RenderMarkdown keep their zero values, which are meaningful.
func fillDefaults(cfg *Config) {
	defaults := Default()

	// Provider
	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = defaults.Provider.Kind
	}
	if cfg.Provider.TimeoutSecs == 0 {
		cfg.Provider.TimeoutSecs = defaults.Provider.TimeoutSecs
	}

	// Repository
	if cfg.Repository.Branch == "" {
		cfg.Repository.Branch = defaults.Repository.Branch
	}
	if cfg.Repository.RequestsPerSecond == 0 {
		cfg.Repository.RequestsPerSecond = defaults.Repository.RequestsPerSecond
	}
	if cfg.Repository.TimeoutSecs == 0 {
		cfg.Repository.TimeoutSecs = defaults.Repository.TimeoutSecs
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}

	// Conversation
	if cfg.Conversation.ContextWindow == 0 {
		cfg.Conversation.ContextWindow = defaults.Conversation.ContextWindow
	}
	if cfg.Conversation.CommandPrefix == "" {
		cfg.Conversation.CommandPrefix = defaults.Conversation.CommandPrefix
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}

// =============================================================================
// DERIVED PATHS
// =============================================================================

// StoragePath returns the configured storage path, or a backend-specific
// file in ConfigDir when none is set.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "file":
		return filepath.Join(dir, "messages.json"), nil
	default:
		return filepath.Join(dir, "messages.db"), nil
	}
}

// LogPath returns the configured log destination, or repochat.log in ConfigDir.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "repochat.log"), nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Written atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# repochat configuration file\n")
	sb.WriteString("# Credentials are stored separately: see `repochat secrets`\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validProviders = []string{"echo", "openrouter", "ollama", "anthropic", "openai"}
	validBackends  = []string{"sqlite", "file", "memory"}
	validLevels    = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"json", "console"}
)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns ValidateErrors when any
// field is invalid.
func (c *Config) Validate() error {
	var errs ValidateErrors

	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Provider
	if !oneOf(c.Provider.Kind, validProviders) {
		add("provider.kind", "invalid provider '%s', must be one of: %s", c.Provider.Kind, strings.Join(validProviders, ", "))
	}
	if c.Provider.BaseURL != "" {
		if err := validateURL(c.Provider.BaseURL); err != nil {
			add("provider.base_url", "%v", err)
		}
	}
	if c.Provider.TimeoutSecs < 0 {
		add("provider.timeout_secs", "must not be negative, got %d", c.Provider.TimeoutSecs)
	}

	// Repository
	if strings.TrimSpace(c.Repository.Branch) == "" {
		add("repository.branch", "must not be empty")
	}
	if c.Repository.BaseURL != "" {
		if err := validateURL(c.Repository.BaseURL); err != nil {
			add("repository.base_url", "%v", err)
		}
	}
	if c.Repository.RequestsPerSecond < 0 {
		add("repository.requests_per_second", "must not be negative, got %g", c.Repository.RequestsPerSecond)
	}
	if c.Repository.TimeoutSecs < 0 {
		add("repository.timeout_secs", "must not be negative, got %d", c.Repository.TimeoutSecs)
	}

	// Storage
	if !oneOf(c.Storage.Backend, validBackends) {
		add("storage.backend", "invalid backend '%s', must be one of: %s", c.Storage.Backend, strings.Join(validBackends, ", "))
	}
	if c.Storage.RetentionDays < 0 {
		add("storage.retention_days", "must not be negative, got %d", c.Storage.RetentionDays)
	}

	// Conversation
	if c.Conversation.ContextWindow < 1 || c.Conversation.ContextWindow > 500 {
		add("conversation.context_window", "must be between 1 and 500, got %d", c.Conversation.ContextWindow)
	}
	prefix := c.Conversation.CommandPrefix
	if prefix == "" || strings.ContainsAny(prefix, " \t\r\n") {
		add("conversation.command_prefix", "must be non-empty and contain no whitespace")
	}

	// Log
	if !oneOf(c.Log.Level, validLevels) {
		add("log.level", "invalid level '%s', must be one of: %s", c.Log.Level, strings.Join(validLevels, ", "))
	}
	if !oneOf(c.Log.Format, validFormats) {
		add("log.format", "invalid format '%s', must be one of: %s", c.Log.Format, strings.Join(validFormats, ", "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateURL requires an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme '%s', must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - REPOCHAT_PROVIDER: overrides provider.kind
//   - REPOCHAT_MODEL: overrides provider.model
//   - REPOCHAT_PROVIDER_URL: overrides provider.base_url
//   - REPOCHAT_BRANCH: overrides repository.branch
//   - REPOCHAT_GITHUB_URL: overrides repository.base_url
//   - REPOCHAT_STORAGE_BACKEND: overrides storage.backend
//   - REPOCHAT_STORAGE_PATH: overrides storage.path
//   - REPOCHAT_CONTEXT_WINDOW: overrides conversation.context_window
//   - REPOCHAT_LOG_LEVEL: overrides log.level
//   - REPOCHAT_LOG_FILE: overrides log.file
//
// Credentials use the keystore's REPOCHAT_* names instead.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("REPOCHAT_PROVIDER"); v != "" {
		c.Provider.Kind = v
	}
	if v := os.Getenv("REPOCHAT_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("REPOCHAT_PROVIDER_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("REPOCHAT_BRANCH"); v != "" {
		c.Repository.Branch = v
	}
	if v := os.Getenv("REPOCHAT_GITHUB_URL"); v != "" {
		c.Repository.BaseURL = v
	}
	if v := os.Getenv("REPOCHAT_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("REPOCHAT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("REPOCHAT_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Conversation.ContextWindow = n
		}
	}
	if v := os.Getenv("REPOCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REPOCHAT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "storage.backend").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "storage.backend").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks a dotted key to a leaf field.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field
// equivalent. Initialisms such as URL match through the case-insensitive lookup.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"provider.kind",
		"provider.model",
		"provider.base_url",
		"provider.timeout_secs",
		"repository.branch",
		"repository.base_url",
		"repository.requests_per_second",
		"repository.timeout_secs",
		"storage.backend",
		"storage.path",
		"storage.retention_days",
		"conversation.context_window",
		"conversation.command_prefix",
		"conversation.render_markdown",
		"log.level",
		"log.format",
		"log.file",
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the configuration as indented JSON for display.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
