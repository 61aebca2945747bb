// Package config loads the process configuration: one active AgentSettings
// row, workspace/tool policy knobs, skill roots, and memory-store settings.
// It follows the same YAML-plus-env-expansion loader the rest of the corpus
// uses, scoped down to what the agentic core actually consumes.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexuscore/agent/pkg/models"
)

// Config is the root configuration structure.
type Config struct {
	Version   int             `yaml:"version"`
	Agent     AgentConfig     `yaml:"agent"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Tools     ToolsConfig     `yaml:"tools"`
	Skills    SkillsConfig    `yaml:"skills"`
	Memory    MemoryConfig    `yaml:"memory"`
	Identity  IdentityConfig  `yaml:"identity"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AgentConfig carries the single active AgentSettings row (spec §3) plus
// the loop's iteration/memory knobs.
type AgentConfig struct {
	Provider      string `yaml:"provider"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	Archetype     string `yaml:"archetype"`
	MaxIterations int    `yaml:"max_iterations"`
	MemoryLimit   int    `yaml:"memory_limit"`
}

// Settings converts the loaded config into the provider-facing AgentSettings.
func (c AgentConfig) Settings() models.AgentSettings {
	return models.AgentSettings{
		Provider:  models.Provider(c.Provider),
		Endpoint:  c.Endpoint,
		APIKey:    c.APIKey,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Archetype: models.Archetype(c.Archetype),
	}
}

type WorkspaceConfig struct {
	Path       string `yaml:"path"`
	MaxChars   int    `yaml:"max_chars"`
	AgentsFile string `yaml:"agents_file"`
	UserFile   string `yaml:"user_file"`
	MemoryFile string `yaml:"memory_file"`
}

// ToolsConfig gates and tunes each tool named in spec.md §4.2.
type ToolsConfig struct {
	Exec      ExecToolConfig      `yaml:"exec"`
	WebSearch WebSearchToolConfig `yaml:"websearch"`
	X402      X402ToolConfig      `yaml:"x402"`
	Approval  ApprovalConfig      `yaml:"approval"`
}

type ExecToolConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxOutputSize int           `yaml:"max_output_size"`
	Denylist      []string      `yaml:"denylist"`
}

type WebSearchToolConfig struct {
	Backend     string `yaml:"backend"`
	BraveAPIKey string `yaml:"brave_api_key"`
	SerpAPIKey  string `yaml:"serpapi_key"`
	SearXNGURL  string `yaml:"searxng_url"`
}

// X402ToolConfig configures the paid-fetch/paid-RPC tools' wallet and
// network. BurnerWalletKey is normally supplied via
// BURNER_WALLET_BOT_PRIVATE_KEY (spec §6) rather than the config file.
type X402ToolConfig struct {
	Network         string `yaml:"network"`
	BurnerWalletKey string `yaml:"burner_wallet_key"`
}

// ApprovalConfig is the allow/deny policy enforced by toolruntime at
// invocation time (spec §4.2's "policy enforced by profile + allow/deny
// lists").
type ApprovalConfig struct {
	Profile   string   `yaml:"profile"`
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
}

// SkillsConfig lists the priority-stacked skill directories, bundled <
// managed < workspace (spec §2 item 4).
type SkillsConfig struct {
	BundledDir   string `yaml:"bundled_dir"`
	ManagedDir   string `yaml:"managed_dir"`
	WorkspaceDir string `yaml:"workspace_dir"`
}

// MemoryConfig points at the relational store and its embedding provider.
type MemoryConfig struct {
	DatabasePath      string            `yaml:"database_path"`
	EmbeddingProvider string            `yaml:"embedding_provider"`
	EmbeddingModel    string            `yaml:"embedding_model"`
	EmbeddingAPIKey   string            `yaml:"embedding_api_key"`
	EmbeddingBaseURL  string            `yaml:"embedding_base_url"`
	ConsolidateEvery  time.Duration     `yaml:"consolidate_every"`
	RetentionByType   map[string]string `yaml:"retention_by_type"`
}

type IdentityConfig struct {
	Name  string `yaml:"name"`
	Vibe  string `yaml:"vibe"`
	Emoji string `yaml:"emoji"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls OpenTelemetry export, mirroring the corpus's
// otel-based observability stack.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	Environment    string  `yaml:"environment"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	Insecure       bool    `yaml:"insecure"`
}

// MetricsConfig controls the Prometheus /metrics HTTP listener, mirroring
// the corpus's promhttp.Handler() wiring in its gateway server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Load reads and parses the configuration file at path, applying
// environment-variable expansion, defaults, and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 4096
	}
	if cfg.Agent.Archetype == "" {
		cfg.Agent.Archetype = string(models.ArchetypeNativeTools)
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 10
	}
	if cfg.Agent.MemoryLimit == 0 {
		cfg.Agent.MemoryLimit = 5
	}
	if cfg.Workspace.Path == "" {
		cfg.Workspace.Path = "."
	}
	if cfg.Workspace.MaxChars == 0 {
		cfg.Workspace.MaxChars = 20000
	}
	if cfg.Workspace.AgentsFile == "" {
		cfg.Workspace.AgentsFile = "AGENTS.md"
	}
	if cfg.Workspace.UserFile == "" {
		cfg.Workspace.UserFile = "USER.md"
	}
	if cfg.Workspace.MemoryFile == "" {
		cfg.Workspace.MemoryFile = "MEMORY.md"
	}
	if cfg.Tools.Exec.Timeout == 0 {
		cfg.Tools.Exec.Timeout = 30 * time.Second
	}
	if cfg.Tools.Exec.MaxOutputSize == 0 {
		cfg.Tools.Exec.MaxOutputSize = 200_000
	}
	if cfg.Tools.WebSearch.Backend == "" {
		cfg.Tools.WebSearch.Backend = "duckduckgo"
	}
	if cfg.Tools.X402.Network == "" {
		cfg.Tools.X402.Network = "base"
	}
	if cfg.Tools.Approval.Profile == "" {
		cfg.Tools.Approval.Profile = "standard"
	}
	if cfg.Memory.DatabasePath == "" {
		cfg.Memory.DatabasePath = "memory.db"
	}
	if cfg.Memory.ConsolidateEvery == 0 {
		cfg.Memory.ConsolidateEvery = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "nexus-agent"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("NEXUS_AGENT_API_KEY")); value != "" {
		cfg.Agent.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("BURNER_WALLET_BOT_PRIVATE_KEY")); value != "" {
		cfg.Tools.X402.BurnerWalletKey = value
	}
	if value := strings.TrimSpace(os.Getenv("BRAVE_SEARCH_API_KEY")); value != "" {
		cfg.Tools.WebSearch.BraveAPIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("SERPAPI_API_KEY")); value != "" {
		cfg.Tools.WebSearch.SerpAPIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_MAX_ITERATIONS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Agent.MaxIterations = parsed
		}
	}
}

// ConfigValidationError aggregates every validation failure found in one
// pass, matching the corpus's "report everything, not just the first
// problem" convention.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string

	switch models.Provider(cfg.Agent.Provider) {
	case models.ProviderClaude, models.ProviderOpenAICompatible, models.ProviderLocal:
	default:
		issues = append(issues, fmt.Sprintf("agent.provider must be %q, %q, or %q", models.ProviderClaude, models.ProviderOpenAICompatible, models.ProviderLocal))
	}
	switch models.Archetype(cfg.Agent.Archetype) {
	case models.ArchetypeNativeTools, models.ArchetypeTextJSON:
	default:
		issues = append(issues, fmt.Sprintf("agent.archetype must be %q or %q", models.ArchetypeNativeTools, models.ArchetypeTextJSON))
	}
	if cfg.Agent.MaxTokens <= 0 {
		issues = append(issues, "agent.max_tokens must be > 0")
	}
	if cfg.Agent.MaxIterations <= 0 {
		issues = append(issues, "agent.max_iterations must be > 0")
	}
	if cfg.Workspace.MaxChars < 0 {
		issues = append(issues, "workspace.max_chars must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Tools.WebSearch.Backend)) {
	case "duckduckgo", "brave", "serpapi", "searxng":
	default:
		issues = append(issues, "tools.websearch.backend must be \"duckduckgo\", \"brave\", \"serpapi\", or \"searxng\"")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Tools.X402.Network)) {
	case "base", "mainnet":
	default:
		issues = append(issues, "tools.x402.network must be \"base\" or \"mainnet\"")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Tools.Approval.Profile)) {
	case "read_only", "standard", "full", "custom":
	default:
		issues = append(issues, "tools.approval.profile must be \"read_only\", \"standard\", \"full\", or \"custom\"")
	}

	if err := ValidateVersion(cfg.Version); err != nil {
		issues = append(issues, err.Error())
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// ResolveWorkspacePath returns the workspace root as an absolute path.
func (c Config) ResolveWorkspacePath() (string, error) {
	return filepath.Abs(c.Workspace.Path)
}
