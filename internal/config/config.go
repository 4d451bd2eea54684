package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	AI        AIConfig        `yaml:"ai"`
	AMap      AMapConfig      `yaml:"amap"`
	Redis     RedisConfig     `yaml:"redis"`
	Fortune   FortuneConfig   `yaml:"fortune"`
	Batch     BatchConfig     `yaml:"batch"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"90s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"       env-default:"false"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// RateLimitConfig holds per-client request limits for public endpoints.
type RateLimitConfig struct {
	FortunePerMinute int `yaml:"fortune_per_minute" env:"RATE_LIMIT_FORTUNE_PER_MINUTE" env-default:"30"`
}

// AIConfig holds the completion endpoint and retry policy.
// The env names AI_ENDPOINT, AI_API_KEY and AI_MODEL_NAME are kept for
// compatibility with existing deployments.
type AIConfig struct {
	Provider    string        `yaml:"provider"     env:"AI_PROVIDER"     env-default:"openai"`
	Endpoint    string        `yaml:"endpoint"     env:"AI_ENDPOINT"`
	APIKey      string        `yaml:"api_key"      env:"AI_API_KEY"`
	Model       string        `yaml:"model"        env:"AI_MODEL_NAME"   env-default:"gpt-3.5-turbo"`
	Timeout     time.Duration `yaml:"timeout"      env:"AI_TIMEOUT"      env-default:"20s"`
	Temperature float64       `yaml:"temperature"  env:"AI_TEMPERATURE"  env-default:"0.7"`
	MaxTokens   int64         `yaml:"max_tokens"   env:"AI_MAX_TOKENS"   env-default:"1000"`

	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" env:"AI_RETRY_BASE_DELAY" env-default:"1s"`
	RetryMultiplier float64       `yaml:"retry_multiplier" env:"AI_RETRY_MULTIPLIER" env-default:"2"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay"  env:"AI_RETRY_MAX_DELAY"  env-default:"10s"`
	MaxRetries      int           `yaml:"max_retries"      env:"AI_MAX_RETRIES"      env-default:"3"`
}

// AMapConfig holds settings for the geolocation and weather API.
type AMapConfig struct {
	APIKey           string        `yaml:"api_key"           env:"AMAP_API_KEY"`
	BaseURL          string        `yaml:"base_url"          env:"AMAP_BASE_URL"          env-default:"https://restapi.amap.com"`
	Timeout          time.Duration `yaml:"timeout"           env:"AMAP_TIMEOUT"           env-default:"5s"`
	BreakerFailures  uint32        `yaml:"breaker_failures"  env:"AMAP_BREAKER_FAILURES"  env-default:"5"`
	BreakerOpenFor   time.Duration `yaml:"breaker_open_for"  env:"AMAP_BREAKER_OPEN_FOR"  env-default:"30s"`
	GeocodeCacheTTL  time.Duration `yaml:"geocode_cache_ttl" env:"AMAP_GEOCODE_CACHE_TTL" env-default:"168h"`
	WeatherCacheTTL  time.Duration `yaml:"weather_cache_ttl" env:"AMAP_WEATHER_CACHE_TTL" env-default:"30m"`
}

// RedisConfig holds the optional lookup cache connection. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB" env-default:"0"`
}

// FortuneConfig holds fortune generation settings.
type FortuneConfig struct {
	GenerationMode    string `yaml:"generation_mode"    env:"FORTUNE_GENERATION_MODE"    env-default:"on_demand"`
	Timezone          string `yaml:"timezone"           env:"FORTUNE_TIMEZONE"           env-default:"Asia/Shanghai"`
	RatingMin         int    `yaml:"rating_min"         env:"FORTUNE_RATING_MIN"         env-default:"1"`
	RatingMax         int    `yaml:"rating_max"         env:"FORTUNE_RATING_MAX"         env-default:"5"`
	RatingPolicy      string `yaml:"rating_policy"      env:"FORTUNE_RATING_POLICY"      env-default:"clamp"`
	PlaceholderPrefix string `yaml:"placeholder_prefix" env:"FORTUNE_PLACEHOLDER_PREFIX" env-default:"待注册用户_"`

	// Location is resolved from Timezone during validation.
	Location *time.Location `yaml:"-" env:"-"`
}

// BatchConfig holds bulk pre-generation throttling settings.
type BatchConfig struct {
	WindowSize    int           `yaml:"window_size"    env:"BATCH_WINDOW_SIZE"    env-default:"20"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"BATCH_MAX_CONCURRENT" env-default:"5"`
	ItemDelay     time.Duration `yaml:"item_delay"     env:"BATCH_ITEM_DELAY"     env-default:"500ms"`
	WindowDelay   time.Duration `yaml:"window_delay"   env:"BATCH_WINDOW_DELAY"   env-default:"2s"`
	MaxErrors     int           `yaml:"max_errors"     env:"BATCH_MAX_ERRORS"     env-default:"10"`
	Timeout       time.Duration `yaml:"timeout"        env:"BATCH_TIMEOUT"        env-default:"30m"`
	Token         string        `yaml:"token"          env:"BATCH_TOKEN"`
}

// Generation modes.
const (
	GenerationModeOnDemand     = "on_demand"
	GenerationModePreGenerated = "pre_generated"
)

// AI providers.
const (
	AIProviderOpenAI    = "openai"
	AIProviderAnthropic = "anthropic"
)

// Rating policies.
const (
	RatingPolicyClamp = "clamp"
	RatingPolicyTrust = "trust"
)

// OnDemand reports whether missing fortunes may be generated while serving a request.
func (c FortuneConfig) OnDemand() bool {
	return c.GenerationMode == GenerationModeOnDemand
}
