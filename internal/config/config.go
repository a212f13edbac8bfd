package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in config.
const (
	ProviderDemo   = "demo"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds application configuration.
type Config struct {
	// Provider selects the generation backend: "demo", "openai" or "gemini".
	Provider string `json:"provider,omitempty"`

	// OpenAIAPIKey authenticates against the OpenAI-compatible endpoints.
	// Usually injected via OPENAI_API_KEY rather than written to disk.
	OpenAIAPIKey     string `json:"openai_api_key,omitempty"`
	OpenAIBaseURL    string `json:"openai_base_url,omitempty"`
	OpenAITextModel  string `json:"openai_text_model,omitempty"`
	OpenAIImageModel string `json:"openai_image_model,omitempty"`

	// GeminiAPIKey authenticates against the Gemini API (GEMINI_API_KEY).
	GeminiAPIKey     string `json:"gemini_api_key,omitempty"`
	GeminiTextModel  string `json:"gemini_text_model,omitempty"`
	GeminiImageModel string `json:"gemini_image_model,omitempty"`

	// ProviderTimeoutSeconds bounds each provider call. Calls whose context
	// already carries a deadline keep the caller's deadline.
	ProviderTimeoutSeconds int `json:"provider_timeout_seconds,omitempty"`

	// DemoBaseDelayMS and DemoPerImageDelayMS model provider latency for the
	// demo provider; more reference images cost more processing time.
	DemoBaseDelayMS     int `json:"demo_base_delay_ms,omitempty"`
	DemoPerImageDelayMS int `json:"demo_per_image_delay_ms,omitempty"`

	// MaxImageBytes caps uploaded reference images (decoded size).
	MaxImageBytes int64 `json:"max_image_bytes,omitempty"`

	// WebBind and WebPort control where `muse serve` listens.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
	// LogFormat is "json" (default) or "console".
	LogFormat string `json:"log_format,omitempty"`
	// LogFile redirects logs from stderr to a file.
	LogFile string `json:"log_file,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.muse/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:               ProviderDemo,
		OpenAIBaseURL:          "https://api.openai.com/v1",
		OpenAITextModel:        "gpt-4o",
		OpenAIImageModel:       "dall-e-3",
		GeminiTextModel:        "gemini-2.5-flash",
		GeminiImageModel:       "gemini-2.5-flash-image",
		ProviderTimeoutSeconds: 120,
		DemoBaseDelayMS:        1500,
		DemoPerImageDelayMS:    500,
		MaxImageBytes:          5 * 1024 * 1024,
		WebBind:                "127.0.0.1",
		WebPort:                8420,
		LogLevel:               "info",
		LogFormat:              "json",
	}
}

// ProviderTimeout returns the per-call provider timeout as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// Validate checks that the selected provider is known and has credentials.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderDemo:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.Provider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q (want demo, openai or gemini)", c.Provider)
	}
	if c.ProviderTimeoutSeconds < 0 {
		return fmt.Errorf("provider_timeout_seconds must be non-negative")
	}
	if c.MaxImageBytes < 0 {
		return fmt.Errorf("max_image_bytes must be non-negative")
	}
	if c.DemoBaseDelayMS < 0 || c.DemoPerImageDelayMS < 0 {
		return fmt.Errorf("demo delays must be non-negative")
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.muse.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.muse) and repo (.muse) directories,
// then applies environment overrides.
// Repo config is found by walking upward from startDir to find the nearest .muse/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	// Walk upward from startDir to find repo config
	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo, then environment
	cfg := Merge(Merge(DefaultConfig(), global), repo)
	ApplyEnv(cfg)
	return cfg, nil
}

// LoadDotEnv loads a .env file from dir into the process environment.
// Variables already set in the environment are not overridden.
// A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays credential and provider settings from the environment.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MUSE_PROVIDER")); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("MUSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// FindRepoConfig walks upward from startDir to find the nearest .muse/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".muse", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Provider = pickString(overlay.Provider, base.Provider)
	result.OpenAIAPIKey = pickString(overlay.OpenAIAPIKey, base.OpenAIAPIKey)
	result.OpenAIBaseURL = pickString(overlay.OpenAIBaseURL, base.OpenAIBaseURL)
	result.OpenAITextModel = pickString(overlay.OpenAITextModel, base.OpenAITextModel)
	result.OpenAIImageModel = pickString(overlay.OpenAIImageModel, base.OpenAIImageModel)
	result.GeminiAPIKey = pickString(overlay.GeminiAPIKey, base.GeminiAPIKey)
	result.GeminiTextModel = pickString(overlay.GeminiTextModel, base.GeminiTextModel)
	result.GeminiImageModel = pickString(overlay.GeminiImageModel, base.GeminiImageModel)
	result.WebBind = pickString(overlay.WebBind, base.WebBind)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)
	result.LogFile = pickString(overlay.LogFile, base.LogFile)

	result.ProviderTimeoutSeconds = pickInt(overlay.ProviderTimeoutSeconds, base.ProviderTimeoutSeconds)
	result.DemoBaseDelayMS = pickInt(overlay.DemoBaseDelayMS, base.DemoBaseDelayMS)
	result.DemoPerImageDelayMS = pickInt(overlay.DemoPerImageDelayMS, base.DemoPerImageDelayMS)
	result.WebPort = pickInt(overlay.WebPort, base.WebPort)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.MaxImageBytes = overlay.MaxImageBytes
	if result.MaxImageBytes == 0 {
		result.MaxImageBytes = base.MaxImageBytes
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
