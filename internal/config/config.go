package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration loaded from orchestrator.yaml
// plus EM_* environment overrides.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	LLM           LLMConfig           `mapstructure:"llm"`
	VectorDB      VectorDBConfig      `mapstructure:"vectordb"`
	WebSearch     WebSearchConfig     `mapstructure:"websearch"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port        int           `mapstructure:"port"`
	MetricsPort int           `mapstructure:"metrics_port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	StreamModel string        `mapstructure:"stream_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
}

type VectorDBConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	TopK       int           `mapstructure:"top_k"`
	Timeout    time.Duration `mapstructure:"timeout"`
	EmbedModel string        `mapstructure:"embed_model"`
}

type WebSearchConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	IdleConnections int           `mapstructure:"idle_connections"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
}

type AgentConfig struct {
	// MaxFanout bounds concurrent per-target sub-branches within one turn.
	MaxFanout int `mapstructure:"max_fanout"`
	// StageTimeout is the default per-external-call timeout.
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
	// RosterPolicyPath points at the major-target expansion policy file.
	RosterPolicyPath string `mapstructure:"roster_policy_path"`
	// RetrievalTopK is how many chunks survive the rerank cut.
	RetrievalTopK int `mapstructure:"retrieval_top_k"`
}

type ObservabilityConfig struct {
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Tracing struct {
		Enabled      bool   `mapstructure:"enabled"`
		ServiceName  string `mapstructure:"service_name"`
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"tracing"`
}

// Path returns the config file location: CONFIG_PATH, or the default
// config/orchestrator.yaml.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/orchestrator.yaml"
}

// Load reads the config file at Path() and applies EM_* environment
// overrides.
func Load() (*Config, error) {
	cfgPath := Path()

	v := viper.New()
	v.SetConfigFile(cfgPath)
	v.SetEnvPrefix("EM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is tolerated; env + defaults still apply.
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.metrics_port", 2112)
	v.SetDefault("server.read_timeout", 30*time.Second)

	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.stream_model", "gpt-4o")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("vectordb.enabled", true)
	v.SetDefault("vectordb.host", "localhost")
	v.SetDefault("vectordb.port", 6333)
	v.SetDefault("vectordb.collection", "manifesto_chunks")
	v.SetDefault("vectordb.top_k", 20)
	v.SetDefault("vectordb.timeout", 5*time.Second)
	v.SetDefault("vectordb.embed_model", "text-embedding-3-small")

	v.SetDefault("websearch.enabled", false)
	v.SetDefault("websearch.base_url", "https://api.perplexity.ai")
	v.SetDefault("websearch.model", "sonar")
	v.SetDefault("websearch.timeout", 60*time.Second)
	v.SetDefault("websearch.requests_per_minute", 30)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.idle_connections", 5)
	v.SetDefault("database.max_lifetime", 30*time.Minute)

	v.SetDefault("agent.max_fanout", 4)
	v.SetDefault("agent.stage_timeout", 90*time.Second)
	v.SetDefault("agent.retrieval_top_k", 5)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.service_name", "em-orchestrator")
	v.SetDefault("observability.tracing.otlp_endpoint", "localhost:4317")
}
