package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"deckforge/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	AI            AIConfig
	Agents        AgentsConfig
	Search        SearchConfig
	Pipeline      PipelineConfig
	Deck          DeckConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Tracing       TracingConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"deckforge"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type HTTPConfig struct {
	Port         int           `envconfig:"HTTP_PORT" default:"8000"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"11m"`
	// CORSOrigins "*" allows every origin.
	CORSOrigins []string `envconfig:"HTTP_CORS_ORIGINS" default:"*"`
}

type AIConfig struct {
	Provider    string        `envconfig:"AI_PROVIDER" default:"openai"` // openai | gemini
	Model       string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	OpenAIKey   string        `envconfig:"OPENAI_API_KEY"`
	OpenAIURL   string        `envconfig:"OPENAI_BASE_URL"`
	GeminiKey   string        `envconfig:"GEMINI_API_KEY"`
	MaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"4096"`
	Temperature float64       `envconfig:"AI_TEMPERATURE" default:"0.2"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`

	RateLimitPerMinute float64 `envconfig:"AI_RATE_LIMIT_PER_MINUTE" default:"500"`
	RateLimitBurst     int     `envconfig:"AI_RATE_LIMIT_BURST" default:"50"`
}

type AgentsConfig struct {
	OrchestratorMaxSteps int `envconfig:"RESEARCH_ORCHESTRATOR_MAX_STEPS" default:"12"`
	ResearcherMaxSteps   int `envconfig:"RESEARCH_AGENT_MAX_STEPS" default:"20"`
	RecencyYears         int `envconfig:"RESEARCH_RECENCY_YEARS" default:"2"`
	// SourcePolicy is strict or prune; see research.SourcePolicy.
	SourcePolicy string `envconfig:"RESEARCH_SOURCE_POLICY" default:"strict"`
}

type SearchConfig struct {
	Provider       string        `envconfig:"SEARCH_PROVIDER" default:"duckduckgo"` // duckduckgo | tavily
	TavilyKey      string        `envconfig:"TAVILY_API_KEY"`
	MaxResults     int           `envconfig:"SEARCH_MAX_RESULTS" default:"5"`
	MaxParallel    int           `envconfig:"SEARCH_MAX_PARALLEL" default:"3"`
	QueriesPerSec  float64       `envconfig:"SEARCH_QUERIES_PER_SECOND" default:"1"`
	Timeout        time.Duration `envconfig:"SEARCH_TIMEOUT" default:"15s"`
	CacheTTL       time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"6h"`
	CacheSize      int           `envconfig:"SEARCH_CACHE_SIZE" default:"512"`
	FetchMaxChars  int           `envconfig:"SEARCH_FETCH_MAX_CHARS" default:"6000"`
	FetchUserAgent string        `envconfig:"SEARCH_FETCH_USER_AGENT" default:"Mozilla/5.0 (compatible; deckforge/1.0)"`
}

type PipelineConfig struct {
	RequestTimeout time.Duration `envconfig:"PIPELINE_REQUEST_TIMEOUT" default:"10m"`
	// MaxPromptLength bounds the research prompt in runes.
	MaxPromptLength int `envconfig:"PIPELINE_MAX_PROMPT_LENGTH" default:"2000"`
	// MaxDeckBytes bounds decks accepted by the editor.
	MaxDeckBytes int `envconfig:"PIPELINE_MAX_DECK_BYTES" default:"1048576"`
}

type DeckConfig struct {
	MaxBulletsPerSlide int    `envconfig:"DECK_MAX_BULLETS_PER_SLIDE" default:"6"`
	MaxTokens          int    `envconfig:"DECK_MAX_TOKENS" default:"8000"`
	Theme              string `envconfig:"DECK_THEME" default:"white"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_PIPELINE_TOPIC" default:"deckforge.pipeline"`
}

type TracingConfig struct {
	Enabled      bool    `envconfig:"TRACING_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"TRACING_OTLP_ENDPOINT" default:"localhost:4318"`
	SampleRate   float64 `envconfig:"TRACING_SAMPLE_RATE" default:"1.0"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs errors.MultiError

	switch strings.ToLower(c.AI.Provider) {
	case "openai":
		if c.AI.OpenAIKey == "" {
			errs.Add(errors.NewValidationError("OPENAI_API_KEY", "required when AI_PROVIDER=openai", nil))
		}
	case "gemini":
		if c.AI.GeminiKey == "" {
			errs.Add(errors.NewValidationError("GEMINI_API_KEY", "required when AI_PROVIDER=gemini", nil))
		}
	default:
		errs.Add(errors.NewValidationError("AI_PROVIDER", "must be openai or gemini", c.AI.Provider))
	}

	switch strings.ToLower(c.Search.Provider) {
	case "duckduckgo":
	case "tavily":
		if c.Search.TavilyKey == "" {
			errs.Add(errors.NewValidationError("TAVILY_API_KEY", "required when SEARCH_PROVIDER=tavily", nil))
		}
	default:
		errs.Add(errors.NewValidationError("SEARCH_PROVIDER", "must be duckduckgo or tavily", c.Search.Provider))
	}

	switch strings.ToLower(c.Agents.SourcePolicy) {
	case "strict", "prune":
	default:
		errs.Add(errors.NewValidationError("RESEARCH_SOURCE_POLICY", "must be strict or prune", c.Agents.SourcePolicy))
	}

	if c.Agents.OrchestratorMaxSteps < 1 {
		errs.Add(errors.NewValidationError("RESEARCH_ORCHESTRATOR_MAX_STEPS", "must be at least 1", c.Agents.OrchestratorMaxSteps))
	}
	if c.Agents.ResearcherMaxSteps < 1 {
		errs.Add(errors.NewValidationError("RESEARCH_AGENT_MAX_STEPS", "must be at least 1", c.Agents.ResearcherMaxSteps))
	}
	if c.Deck.MaxBulletsPerSlide < 1 {
		errs.Add(errors.NewValidationError("DECK_MAX_BULLETS_PER_SLIDE", "must be at least 1", c.Deck.MaxBulletsPerSlide))
	}
	if c.Pipeline.RequestTimeout <= 0 {
		errs.Add(errors.NewValidationError("PIPELINE_REQUEST_TIMEOUT", "must be positive", c.Pipeline.RequestTimeout))
	}

	return errs.ToError()
}
