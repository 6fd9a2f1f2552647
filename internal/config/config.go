// Package config loads service settings from defaults, an optional YAML
// file (CONFIG_FILE) and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type HEREConfig struct {
	TourPlanningURL string `yaml:"tour_planning_url"`
	RoutingURL      string `yaml:"routing_url"`
	// Static bearer token; when empty the client credentials below are used.
	AccessToken       string  `yaml:"access_token"`
	ClientID          string  `yaml:"client_id"`
	ClientSecret      string  `yaml:"client_secret"`
	TokenURL          string  `yaml:"token_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type OptimizationConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// Zero polls until the remote service reaches a terminal status.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// Deadline of one optimization request, polling included. Must end
	// before the HTTP write timeout so the response can still be written.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Profile        string        `yaml:"profile"`
	AvoidFeatures  []string      `yaml:"avoid_features"`
	// Capacity used for drivers without an explicit vehicle capacity.
	DefaultCapacity int `yaml:"default_capacity"`
}

type Config struct {
	HTTP HTTPConfig `yaml:"http"`
	DB   struct {
		URL string `yaml:"url"`
	} `yaml:"db"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	HERE         HEREConfig         `yaml:"here"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Google       struct {
		MapsAPIKey string `yaml:"maps_api_key"`
	} `yaml:"google"`
}

func defaults() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.WriteTimeout = 15 * time.Minute
	cfg.HERE.TourPlanningURL = "https://tourplanning.hereapi.com"
	cfg.HERE.RoutingURL = "https://router.hereapi.com"
	cfg.HERE.TokenURL = "https://account.api.here.com/oauth2/token"
	cfg.HERE.RequestsPerSecond = 5
	cfg.HERE.Burst = 5
	cfg.Optimization.PollInterval = 30 * time.Second
	cfg.Optimization.RequestTimeout = 14 * time.Minute
	cfg.Optimization.Profile = "car"
	cfg.Optimization.DefaultCapacity = 50
	return cfg
}

// Load builds the configuration. CONFIG_FILE, when set, must point to a readable YAML file.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: parse %q: %w", path, err)
		}
	}

	cfg.HTTP.Addr = Get("HTTP_ADDR", cfg.HTTP.Addr)
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	cfg.HTTP.WriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout)
	cfg.DB.URL = Get("DATABASE_URL", cfg.DB.URL)
	cfg.Redis.URL = Get("REDIS_URL", cfg.Redis.URL)

	cfg.HERE.TourPlanningURL = Get("HERE_TOUR_PLANNING_URL", cfg.HERE.TourPlanningURL)
	cfg.HERE.RoutingURL = Get("HERE_ROUTING_URL", cfg.HERE.RoutingURL)
	cfg.HERE.AccessToken = Get("HERE_ACCESS_TOKEN", cfg.HERE.AccessToken)
	cfg.HERE.ClientID = Get("HERE_ACCESS_KEY_ID", cfg.HERE.ClientID)
	cfg.HERE.ClientSecret = Get("HERE_ACCESS_KEY_SECRET", cfg.HERE.ClientSecret)
	cfg.HERE.TokenURL = Get("HERE_TOKEN_URL", cfg.HERE.TokenURL)
	cfg.HERE.RequestsPerSecond = getFloat("HERE_REQUESTS_PER_SECOND", cfg.HERE.RequestsPerSecond)
	cfg.HERE.Burst = getInt("HERE_BURST", cfg.HERE.Burst)

	cfg.Optimization.PollInterval = getDuration("OPTIMIZATION_POLL_INTERVAL", cfg.Optimization.PollInterval)
	cfg.Optimization.PollTimeout = getDuration("OPTIMIZATION_POLL_TIMEOUT", cfg.Optimization.PollTimeout)
	cfg.Optimization.RequestTimeout = getDuration("OPTIMIZATION_REQUEST_TIMEOUT", cfg.Optimization.RequestTimeout)
	cfg.Optimization.Profile = Get("OPTIMIZATION_PROFILE", cfg.Optimization.Profile)
	cfg.Optimization.DefaultCapacity = getInt("OPTIMIZATION_DEFAULT_CAPACITY", cfg.Optimization.DefaultCapacity)
	if v := os.Getenv("OPTIMIZATION_AVOID_FEATURES"); v != "" {
		cfg.Optimization.AvoidFeatures = splitList(v)
	}

	cfg.Google.MapsAPIKey = Get("GOOGLE_MAPS_API_KEY", cfg.Google.MapsAPIKey)

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.HERE.AccessToken) == "" &&
		(strings.TrimSpace(c.HERE.ClientID) == "" || strings.TrimSpace(c.HERE.ClientSecret) == "") {
		return errors.New("HERE_ACCESS_TOKEN or HERE_ACCESS_KEY_ID/HERE_ACCESS_KEY_SECRET is required")
	}
	if c.Optimization.PollInterval <= 0 {
		return errors.New("optimization poll interval must be positive")
	}
	if c.Optimization.PollTimeout < 0 {
		return errors.New("optimization poll timeout must not be negative")
	}
	if c.Optimization.RequestTimeout <= 0 {
		return errors.New("optimization request timeout must be positive")
	}
	if c.HTTP.WriteTimeout > 0 && c.Optimization.RequestTimeout >= c.HTTP.WriteTimeout {
		return fmt.Errorf("optimization request timeout %s must be shorter than the HTTP write timeout %s",
			c.Optimization.RequestTimeout, c.HTTP.WriteTimeout)
	}
	if c.HERE.RequestsPerSecond <= 0 || c.HERE.Burst < 1 {
		return errors.New("HERE rate limit must be positive")
	}
	return nil
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
