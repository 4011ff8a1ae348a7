package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"oulipoly-plane/internal/domain"
)

// EnvPath names the environment variable that points at the config file.
const EnvPath = "PLANE_CONFIG"

// Config is the top-level application configuration.
type Config struct {
	Paths    PathsConfig  `yaml:"paths"`
	Logger   LoggerConfig `yaml:"logger"`
	Tracer   TracerConfig `yaml:"tracer"`
	Setup    SetupConfig  `yaml:"setup"`
	UI       UIConfig     `yaml:"ui"`
	Includes []string     `yaml:"includes,omitempty"`
}

// PathsConfig locates persistent state.
type PathsConfig struct {
	StateDir  string `yaml:"state_dir"`
	ModelsDir string `yaml:"models_dir"`
	HistoryDB string `yaml:"history_db"` // relative paths live under StateDir
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// SetupConfig drives the setup flow and its planner.
type SetupConfig struct {
	Planner              string        `yaml:"planner"` // "guided" or "claude"
	MaxTurns             int           `yaml:"max_turns"`
	AgentModel           string        `yaml:"agent_model"`
	AgentTimeout         time.Duration `yaml:"agent_timeout"`
	MCPCheckTimeout      time.Duration `yaml:"mcp_check_timeout"` // 0 skips listing a synced server's tools
	AllowedCommands      []string      `yaml:"allowed_commands"`
	AllowedWritePrefixes []string      `yaml:"allowed_write_prefixes"`
	KnownCLIs            []KnownCLI    `yaml:"known_clis,omitempty"`
}

// KnownCLI adds a CLI to the detection table, or replaces the built-in
// entry of the same name.
type KnownCLI struct {
	Name       string   `yaml:"name"`
	ConfigDirs []string `yaml:"config_dirs,omitempty"`
	AuthFiles  []string `yaml:"auth_files,omitempty"`
	AuthEnv    []string `yaml:"auth_env,omitempty"`
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	Theme string `yaml:"theme"` // glamour style: auto, dark, light, notty
	ASCII bool   `yaml:"ascii"`
}

// DefaultPath returns $PLANE_CONFIG or ~/.config/oulipoly-plane/config.yaml.
func DefaultPath() string {
	if v := os.Getenv(EnvPath); v != "" {
		return ExpandHome(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "oulipoly-plane", "config.yaml")
}

// defaultStateDir returns $HOME/.local/state/oulipoly-plane.
// Falls back to "./state" if $HOME cannot be determined.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./state"
	}
	return filepath.Join(home, ".local", "state", "oulipoly-plane")
}

func defaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./models"
	}
	return filepath.Join(home, ".config", "oulipoly-agent-runner", "models")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Paths: PathsConfig{
			StateDir:  defaultStateDir(),
			ModelsDir: defaultModelsDir(),
			HistoryDB: "history.db",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "plane.log",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Setup: SetupConfig{
			Planner:         "guided",
			MaxTurns:        25,
			AgentModel:      "claude-sonnet-4-6",
			AgentTimeout:    120 * time.Second,
			MCPCheckTimeout: 20 * time.Second,
			AllowedCommands: []string{
				"which", "type", "claude", "codex", "opencode", "gemini",
				"npm", "npx", "curl", "bash",
			},
			AllowedWritePrefixes: []string{
				".config/oulipoly-agent-runner/",
				".local/bin/",
			},
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// Load reads a YAML config file, applies env var overrides and validates the
// result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	path = ExpandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrConfigLoad, path, err)
		}
		return finish(cfg)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", domain.ErrConfigLoad, path, err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfigLoad, path, err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}
		// The main file wins over its includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s (second pass): %w", domain.ErrConfigLoad, path, err)
		}
		cfg.Includes = nil
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)
	cfg.resolvePaths()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps PLANE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLANE_STATE_DIR"); v != "" {
		cfg.Paths.StateDir = v
	}
	if v := os.Getenv("PLANE_MODELS_DIR"); v != "" {
		cfg.Paths.ModelsDir = v
	}
	if v := os.Getenv("PLANE_HISTORY_DB"); v != "" {
		cfg.Paths.HistoryDB = v
	}
	if v := os.Getenv("PLANE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PLANE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("PLANE_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("PLANE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("PLANE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("PLANE_SETUP_PLANNER"); v != "" {
		cfg.Setup.Planner = v
	}
	if v := os.Getenv("PLANE_SETUP_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Setup.MaxTurns = n
		}
	}
	if v := os.Getenv("PLANE_SETUP_AGENT_MODEL"); v != "" {
		cfg.Setup.AgentModel = v
	}
	if v := os.Getenv("PLANE_SETUP_AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Setup.AgentTimeout = d
		}
	}
	if v := os.Getenv("PLANE_SETUP_MCP_CHECK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Setup.MCPCheckTimeout = d
		}
	}
	if v := os.Getenv("PLANE_SETUP_ALLOWED_COMMANDS"); v != "" {
		cfg.Setup.AllowedCommands = splitAndTrim(v, ",")
	}
	if v := os.Getenv("PLANE_UI_THEME"); v != "" {
		cfg.UI.Theme = v
	}
	if v := os.Getenv("PLANE_UI_ASCII"); v == "true" || v == "1" {
		cfg.UI.ASCII = true
	}
}

// resolvePaths expands ~ and anchors relative state files under StateDir.
func (c *Config) resolvePaths() {
	c.Paths.StateDir = ExpandHome(c.Paths.StateDir)
	c.Paths.ModelsDir = ExpandHome(c.Paths.ModelsDir)
	c.Paths.HistoryDB = c.StatePath(ExpandHome(c.Paths.HistoryDB))

	switch strings.ToLower(c.Logger.Output) {
	case "stdout", "stderr", "":
	default:
		c.Logger.Output = c.StatePath(ExpandHome(c.Logger.Output))
	}
}

// StatePath resolves name under the state directory unless it is absolute.
func (c *Config) StatePath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.StateDir, name)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
}

// Encode renders cfg as YAML for display.
func Encode(cfg *Config) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validatePermissions checks the config file is not writable by others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("%w: config file %s has insecure permissions %o (want 0600 or 0644)",
			domain.ErrPermissionDenied, path, mode)
	}
	return nil
}
