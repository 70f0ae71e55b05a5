package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"GO_ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// MaintenanceMode rejects every mutating request with 503.
	MaintenanceMode bool `mapstructure:"MAINTENANCE_MODE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Catalog & selection
	ProblemsFile string `mapstructure:"PROBLEMS_FILE"`
	SelectorSeed int64  `mapstructure:"SELECTOR_SEED"` // 0 = seeded from clock

	// Reflection providers
	GeminiAPIKey             string `mapstructure:"GEMINI_API_KEY"`
	SecondGeminiAPIKey       string `mapstructure:"SECOND_GEMINI_KEY"`
	GroqAPIKey               string `mapstructure:"GROQ_API_KEY"`
	OpenRouterAPIKey         string `mapstructure:"OPENROUTER_API_KEY"`
	ReflectionTimeoutSeconds int    `mapstructure:"REFLECTION_TIMEOUT_SECONDS"`
}

var AppConfig *Config

// DevelopmentJWTSecret signs tokens when GO_ENV=development and no secret is
// configured. Any other environment must set JWT_SECRET.
const DevelopmentJWTSecret = "circle-dev-secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("DATABASE_URL", "sqlite:circle.db")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("MAINTENANCE_MODE", false)
	v.SetDefault("PROBLEMS_FILE", "output/standardized_problems.json")
	v.SetDefault("SELECTOR_SEED", 0)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("SECOND_GEMINI_KEY", "")
	v.SetDefault("GROQ_API_KEY", "")
	v.SetDefault("OPENROUTER_API_KEY", "")
	v.SetDefault("REFLECTION_TIMEOUT_SECONDS", 60)
}

// LoadConfig reads .env (if present) and the environment. The result is also
// stored in AppConfig.
func LoadConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if cfg.JWTSecret == "" && cfg.Env == "development" {
		log.Println("JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = DevelopmentJWTSecret
	}

	AppConfig = &cfg
	return &cfg
}
