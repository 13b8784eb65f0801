// Package config loads docdex configuration.
//
// Values are layered in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/docdex/config.yaml)
//  3. Project config (.docdex.yaml or .docdex.yml in the indexed root)
//  4. Environment variables (DOCDEX_*)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
)

// DataDirName is the per-root directory holding the snapshot, lock and socket.
const DataDirName = ".docdex"

// Config represents the complete docdex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// PathsConfig decides which files are eligible for indexing.
type PathsConfig struct {
	// Extensions is the allow-list of file extensions, including the dot.
	Extensions []string `yaml:"extensions" json:"extensions"`
	// ExcludeDirs are directory base names never descended into.
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`
	// IgnorePrefixes exclude hidden and editor temp files by base name.
	IgnorePrefixes []string `yaml:"ignore_prefixes" json:"ignore_prefixes"`
	// IgnoreSuffixes exclude backup and swap files by base name.
	IgnoreSuffixes []string `yaml:"ignore_suffixes" json:"ignore_suffixes"`
	// MaxFileSize in bytes; larger files are skipped.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// SearchConfig configures ranking and result presentation.
type SearchConfig struct {
	MaxResults    int     `yaml:"max_results" json:"max_results"`
	SnippetWindow int     `yaml:"snippet_window" json:"snippet_window"`
	CacheSize     int     `yaml:"cache_size" json:"cache_size"`
	K1            float64 `yaml:"k1" json:"k1"`
	B             float64 `yaml:"b" json:"b"`
}

// StorageConfig configures snapshot persistence.
type StorageConfig struct {
	// Backend is one of "file" (default), "sqlite" or "bolt".
	Backend string `yaml:"backend" json:"backend"`
	// DataDir is resolved against the indexed root when relative.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// WatchConfig configures the file watcher used by `docdex serve`.
type WatchConfig struct {
	Debounce     string `yaml:"debounce" json:"debounce"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// ServerConfig configures the daemon and HTTP adapter.
type ServerConfig struct {
	// HTTPAddr enables the HTTP API when non-empty (e.g. "127.0.0.1:8090").
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

var defaultExtensions = []string{
	".md", ".markdown", ".txt", ".rst", ".org",
	".py", ".json", ".html",
	".go", ".rs", ".js", ".ts",
	".yaml", ".yml", ".toml",
}

var defaultExcludeDirs = []string{
	".git", DataDirName, "node_modules", "vendor", "__pycache__",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Extensions:     append([]string(nil), defaultExtensions...),
			ExcludeDirs:    append([]string(nil), defaultExcludeDirs...),
			IgnorePrefixes: []string{".", "~", "#"},
			IgnoreSuffixes: []string{"~", ".swp", ".tmp"},
			MaxFileSize:    10 * 1024 * 1024,
		},
		Search: SearchConfig{
			MaxResults:    20,
			SnippetWindow: 150,
			CacheSize:     256,
			K1:            1.5,
			B:             0.75,
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: DataDirName,
		},
		Watch: WatchConfig{
			Debounce:     "200ms",
			PollInterval: "5s",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/docdex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docdex/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "docdex", "config.yaml")
}

// Load loads configuration for the tree rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, docerrors.ConfigError("invalid configuration: "+err.Error(), err).
			WithSuggestion("fix the value or run 'docdex config show' to see the effective settings")
	}

	return cfg, nil
}

// ProjectConfigPath returns the project config file for dir, preferring
// .docdex.yaml over .docdex.yml. Empty when neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{".docdex.yaml", ".docdex.yml"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// ResolveDataDir returns the absolute data directory for root.
func (c *Config) ResolveDataDir(root string) string {
	if filepath.IsAbs(c.Storage.DataDir) {
		return c.Storage.DataDir
	}
	return filepath.Join(root, c.Storage.DataDir)
}

// DebounceDuration parses Watch.Debounce, falling back to 200ms.
func (c *Config) DebounceDuration() time.Duration {
	return parseDuration(c.Watch.Debounce, 200*time.Millisecond)
}

// PollDuration parses Watch.PollInterval, falling back to 5s.
func (c *Config) PollDuration() time.Duration {
	return parseDuration(c.Watch.PollInterval, 5*time.Second)
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(path, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *Config) loadFromFile(dir string) error {
	path := ProjectConfigPath(dir)
	if path == "" {
		return nil
	}

	var parsed Config
	if err := readYAML(path, &parsed); err != nil {
		return err
	}
	c.mergeWith(&parsed)
	return nil
}

// readYAML decodes the config file at path. A file that vanished or
// cannot be opened gets its own code so the CLI can say which.
func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		code := docerrors.ErrCodeConfigInvalid
		switch {
		case errors.Is(err, fs.ErrNotExist):
			code = docerrors.ErrCodeConfigNotFound
		case errors.Is(err, fs.ErrPermission):
			code = docerrors.ErrCodeConfigPermission
		}
		return docerrors.New(code, fmt.Sprintf("failed to read config file %s", path), err).
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return docerrors.ConfigError(fmt.Sprintf("failed to parse config file %s: %v", path, err), err).
			WithDetail("path", path)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Extensions) > 0 {
		c.Paths.Extensions = normalizeExtensions(other.Paths.Extensions)
	}
	if len(other.Paths.ExcludeDirs) > 0 {
		// extend the defaults rather than replace them
		c.Paths.ExcludeDirs = appendUnique(c.Paths.ExcludeDirs, other.Paths.ExcludeDirs...)
	}
	if len(other.Paths.IgnorePrefixes) > 0 {
		c.Paths.IgnorePrefixes = other.Paths.IgnorePrefixes
	}
	if len(other.Paths.IgnoreSuffixes) > 0 {
		c.Paths.IgnoreSuffixes = other.Paths.IgnoreSuffixes
	}
	if other.Paths.MaxFileSize != 0 {
		c.Paths.MaxFileSize = other.Paths.MaxFileSize
	}

	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.SnippetWindow != 0 {
		c.Search.SnippetWindow = other.Search.SnippetWindow
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}
	if other.Search.K1 != 0 {
		c.Search.K1 = other.Search.K1
	}
	if other.Search.B != 0 {
		c.Search.B = other.Search.B
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.PollInterval != "" {
		c.Watch.PollInterval = other.Watch.PollInterval
	}

	if other.Server.HTTPAddr != "" {
		c.Server.HTTPAddr = other.Server.HTTPAddr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies DOCDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCDEX_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("DOCDEX_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Search.K1 = f
		}
	}
	// b may legitimately be 0 (no length normalization)
	if v := os.Getenv("DOCDEX_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Search.B = f
		}
	}
	if v := os.Getenv("DOCDEX_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Paths.MaxFileSize = n
		}
	}
	if v := os.Getenv("DOCDEX_EXTENSIONS"); v != "" {
		c.Paths.Extensions = normalizeExtensions(strings.Split(v, ","))
	}
	if v := os.Getenv("DOCDEX_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("DOCDEX_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("DOCDEX_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("DOCDEX_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("DOCDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if len(c.Paths.Extensions) == 0 {
		return fmt.Errorf("paths.extensions must not be empty")
	}
	if c.Paths.MaxFileSize < 0 {
		return fmt.Errorf("paths.max_file_size must be non-negative, got %d", c.Paths.MaxFileSize)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.SnippetWindow < 0 {
		return fmt.Errorf("search.snippet_window must be non-negative, got %d", c.Search.SnippetWindow)
	}
	if c.Search.K1 <= 0 {
		return fmt.Errorf("search.k1 must be positive, got %f", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.b must be between 0 and 1, got %f", c.Search.B)
	}

	validBackends := map[string]bool{"file": true, "sqlite": true, "bolt": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		return fmt.Errorf("storage.backend must be 'file', 'sqlite' or 'bolt', got %s", c.Storage.Backend)
	}

	for name, v := range map[string]string{"watch.debounce": c.Watch.Debounce, "watch.poll_interval": c.Watch.PollInterval} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a .docdex.yaml,
// .docdex.yml or an existing data directory. Returns the absolute
// startDir when none is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if ProjectConfigPath(current) != "" || dirExists(filepath.Join(current, DataDirName)) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = appendUnique(out, e)
	}
	return out
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
