package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gemini-review-mcp configuration.
//
// Every limit the pipeline enforces lives here so tests can inject small
// values instead of waiting on megabyte files or 30 second timeouts.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Sandbox bounds every file the server is willing to read.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Gemini configures the external analysis CLI.
	Gemini GeminiConfig `yaml:"gemini"`

	// Limits on free-text request arguments.
	Limits LimitsConfig `yaml:"limits"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SandboxConfig confines filesystem access.
type SandboxConfig struct {
	// RootDir confines all reads. Empty means the process working directory.
	RootDir string `yaml:"root_dir"`

	// MaxFileSize is the per-file size ceiling in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`

	// AllowedSuffixes lists reviewable file extensions (leading dot,
	// compared case-insensitively).
	AllowedSuffixes []string `yaml:"allowed_suffixes"`
}

// GeminiConfig configures the external gemini CLI invocation.
type GeminiConfig struct {
	// Binary is the executable name or path of the gemini CLI.
	Binary string `yaml:"binary"`

	// Timeout for one analysis invocation.
	Timeout string `yaml:"timeout"`

	// ProbeTimeout for the availability check (gemini --version).
	ProbeTimeout string `yaml:"probe_timeout"`

	// MaxOutputBytes caps accumulated stdout from the CLI.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// AllowedEnvVars are the only variables passed to the child process.
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}

// LimitsConfig bounds free-text request arguments.
type LimitsConfig struct {
	MaxContextLength  int `yaml:"max_context_length"`
	MaxLanguageLength int `yaml:"max_language_length"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "gemini-review-mcp",
		Version: "1.0.0",

		Sandbox: SandboxConfig{
			RootDir:     "",
			MaxFileSize: 1024 * 1024,
			AllowedSuffixes: []string{
				".go", ".js", ".jsx", ".ts", ".tsx", ".py", ".rb", ".java",
				".c", ".h", ".cpp", ".hpp", ".cs", ".rs", ".php", ".swift",
				".kt", ".scala", ".sh", ".sql", ".html", ".css", ".json",
				".yaml", ".yml", ".toml", ".md",
			},
		},

		Gemini: GeminiConfig{
			Binary:         "gemini",
			Timeout:        "30s",
			ProbeTimeout:   "5s",
			MaxOutputBytes: 1024 * 1024,
			AllowedEnvVars: []string{"PATH", "HOME", "GEMINI_API_KEY"},
		},

		Limits: LimitsConfig{
			MaxContextLength:  1000,
			MaxLanguageLength: 50,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error; defaults apply. Environment overrides win over the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("GEMINI_REVIEW_ROOT"); root != "" {
		c.Sandbox.RootDir = root
	}
	if bin := os.Getenv("GEMINI_REVIEW_BIN"); bin != "" {
		c.Gemini.Binary = bin
	}
	if timeout := os.Getenv("GEMINI_REVIEW_TIMEOUT"); timeout != "" {
		c.Gemini.Timeout = timeout
	}
	if size := os.Getenv("GEMINI_REVIEW_MAX_FILE_SIZE"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil && n > 0 {
			c.Sandbox.MaxFileSize = n
		}
	}
	if level := os.Getenv("GEMINI_REVIEW_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ResolveRoot returns the sandbox root as an absolute path, falling back
// to the process working directory when none is configured.
func (c *Config) ResolveRoot() (string, error) {
	root := c.Sandbox.RootDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	return filepath.Clean(abs), nil
}

// GetTimeout returns the analysis timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetProbeTimeout returns the availability probe timeout as a duration.
func (c *Config) GetProbeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.ProbeTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
