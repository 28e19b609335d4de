package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	LLM       LLMConfig
	Gems      GemsConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Snowflake SnowflakeConfig
}

type ServerConfig struct {
	Port       string
	Env        string
	GinMode    string
	CORSOrigin string
}

type LogConfig struct {
	Level string
	Dir   string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN prefers database.url and falls back to the discrete host settings.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type LLMConfig struct {
	Provider       string // "ollama" or "openai"
	BaseURL        string
	Model          string
	APIKey         string
	TimeoutSeconds int
	MaxAttempts    int
	BackoffBaseMs  int
}

type GemsConfig struct {
	WelcomeBonus int
	MonsterCost  int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	GenerationPerMin int
}

type SnowflakeConfig struct {
	Node int64
}

// Load reads .env (if any), config.yaml (if any) and the environment.
// Environment keys use underscores, e.g. LLM_BASE_URL for llm.base_url.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:       v.GetString("server.port"),
			Env:        v.GetString("server.env"),
			GinMode:    v.GetString("server.gin_mode"),
			CORSOrigin: v.GetString("server.cors_origin"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			Dir:   v.GetString("log.dir"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			User:     v.GetString("database.user"),
			Password: readSecret(v, "database.password"),
			Name:     v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		JWT: JWTConfig{
			Secret:          readSecret(v, "jwt.secret"),
			ExpirationHours: v.GetInt("jwt.expiration_hours"),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(v.GetString("llm.provider")),
			BaseURL:        v.GetString("llm.base_url"),
			Model:          v.GetString("llm.model"),
			APIKey:         readSecret(v, "llm.api_key"),
			TimeoutSeconds: v.GetInt("llm.timeout_seconds"),
			MaxAttempts:    v.GetInt("llm.max_attempts"),
			BackoffBaseMs:  v.GetInt("llm.backoff_base_ms"),
		},
		Gems: GemsConfig{
			WelcomeBonus: v.GetInt("gems.welcome_bonus"),
			MonsterCost:  v.GetInt("gems.monster_cost"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: readSecret(v, "redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			GenerationPerMin: v.GetInt("ratelimit.generation_per_min"),
		},
		Snowflake: SnowflakeConfig{
			Node: v.GetInt64("snowflake.node"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.gin_mode", "debug")
	v.SetDefault("server.cors_origin", "http://localhost:5173")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "portal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.backoff_base_ms", 1000)
	v.SetDefault("gems.welcome_bonus", 50)
	v.SetDefault("gems.monster_cost", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.generation_per_min", 20)
	v.SetDefault("snowflake.node", 1)
}

// readSecret returns the value of key, or the contents of the file named by
// the KEY_FILE environment variable when that is set.
func readSecret(v *viper.Viper, key string) string {
	envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_")) + "_FILE"
	if path := os.Getenv(envKey); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return v.GetString(key)
}

// IsDevelopment reports whether the server runs in a local/dev environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "" || c.Server.Env == "development" || c.Server.Env == "local"
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" && !c.IsDevelopment() {
		return fmt.Errorf("jwt.secret must be set outside development")
	}
	if c.LLM.Provider != "ollama" && c.LLM.Provider != "openai" {
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1")
	}
	if c.Gems.WelcomeBonus < 0 || c.Gems.MonsterCost < 0 {
		return fmt.Errorf("gem amounts must not be negative")
	}
	return nil
}
