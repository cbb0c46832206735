package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the engine's full runtime configuration, loaded once at
// process start and passed down by reference.
type Config struct {
	Env string

	Log     LogConfig
	Solver  SolverConfig
	Metrics MetricsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig holds the default search budget and objective weights
// used when a request does not override them (spec.md §6).
type SolverConfig struct {
	MaxSolveTime            time.Duration
	DefaultWeightPreference float64
	DefaultWeightEfficiency float64
	DefaultWeightBalance    float64
	AllowPartialSolutions   bool
	MaxSuggestions          int
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Solver = SolverConfig{
		MaxSolveTime:            parseDuration(v.GetString("SOLVER_MAX_SOLVE_TIME"), 300*time.Second),
		DefaultWeightPreference: v.GetFloat64("SOLVER_WEIGHT_PREFERENCE"),
		DefaultWeightEfficiency: v.GetFloat64("SOLVER_WEIGHT_EFFICIENCY"),
		DefaultWeightBalance:    v.GetFloat64("SOLVER_WEIGHT_BALANCE"),
		AllowPartialSolutions:   v.GetBool("SOLVER_ALLOW_PARTIAL_SOLUTIONS"),
		MaxSuggestions:          v.GetInt("SUGGEST_MAX_SUGGESTIONS"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("METRICS_ENABLED"),
		Addr:    v.GetString("METRICS_ADDR"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_MAX_SOLVE_TIME", "300s")
	v.SetDefault("SOLVER_WEIGHT_PREFERENCE", 0.4)
	v.SetDefault("SOLVER_WEIGHT_EFFICIENCY", 0.3)
	v.SetDefault("SOLVER_WEIGHT_BALANCE", 0.3)
	v.SetDefault("SOLVER_ALLOW_PARTIAL_SOLUTIONS", true)
	v.SetDefault("SUGGEST_MAX_SUGGESTIONS", 5)

	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_ADDR", ":9090")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
