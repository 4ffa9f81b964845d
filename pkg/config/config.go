package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Agent struct {
		PingInterval     time.Duration `yaml:"ping_interval"`
		PongTimeout      time.Duration `yaml:"pong_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		CommandTimeout   time.Duration `yaml:"command_timeout"`
		HeartbeatWindow  time.Duration `yaml:"heartbeat_window"`
		SweepInterval    time.Duration `yaml:"sweep_interval"`
		MaxMessageBytes  int64         `yaml:"max_message_bytes"`
		BreakerThreshold int           `yaml:"breaker_threshold"`
	} `yaml:"agent"`

	Preview struct {
		DefaultFPS       int           `yaml:"default_fps"`
		MaxFPS           int           `yaml:"max_fps"`
		QueueSize        int           `yaml:"queue_size"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxWriteFailures int           `yaml:"max_write_failures"`
	} `yaml:"preview"`

	Recording struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"recording"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		OperatorID     string        `yaml:"operator_id"`
		OperatorKey    string        `yaml:"operator_key"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Agent.PingInterval <= 0 {
		return fmt.Errorf("agent.ping_interval must be > 0")
	}
	if c.Agent.PongTimeout <= 0 {
		return fmt.Errorf("agent.pong_timeout must be > 0")
	}
	if c.Agent.CommandTimeout <= 0 {
		return fmt.Errorf("agent.command_timeout must be > 0")
	}
	if c.Agent.HeartbeatWindow <= 0 {
		return fmt.Errorf("agent.heartbeat_window must be > 0")
	}
	if c.Agent.SweepInterval <= 0 {
		return fmt.Errorf("agent.sweep_interval must be > 0")
	}
	if c.Agent.MaxMessageBytes < 0 {
		return fmt.Errorf("agent.max_message_bytes must be >= 0")
	}

	if c.Preview.DefaultFPS <= 0 {
		return fmt.Errorf("preview.default_fps must be > 0")
	}
	if c.Preview.MaxFPS < c.Preview.DefaultFPS {
		return fmt.Errorf("preview.max_fps must be >= preview.default_fps")
	}
	if c.Preview.QueueSize <= 0 {
		return fmt.Errorf("preview.queue_size must be > 0")
	}
	if c.Preview.MaxWriteFailures <= 0 {
		return fmt.Errorf("preview.max_write_failures must be > 0")
	}

	if c.Recording.OutputDir == "" {
		return fmt.Errorf("recording.output_dir must not be empty")
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Agent.PingInterval = 30 * time.Second
	cfg.Agent.PongTimeout = 60 * time.Second
	cfg.Agent.WriteTimeout = 10 * time.Second
	cfg.Agent.CommandTimeout = 30 * time.Second
	cfg.Agent.HeartbeatWindow = 90 * time.Second
	cfg.Agent.SweepInterval = 15 * time.Second
	cfg.Agent.MaxMessageBytes = 8 * 1024 * 1024
	cfg.Agent.BreakerThreshold = 5

	cfg.Preview.DefaultFPS = 10
	cfg.Preview.MaxFPS = 30
	cfg.Preview.QueueSize = 16
	cfg.Preview.WriteTimeout = 5 * time.Second
	cfg.Preview.MaxWriteFailures = 3

	cfg.Recording.OutputDir = "recordings"

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "camfleet"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.OperatorID = "operator"
	cfg.Auth.OperatorKey = "change-me-too"
	cfg.Auth.AccessTokenTTL = 12 * time.Hour

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CAMFLEET_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("CAMFLEET_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CAMFLEET_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if key := os.Getenv("CAMFLEET_OPERATOR_KEY"); key != "" {
		c.Auth.OperatorKey = key
	}
	if dir := os.Getenv("CAMFLEET_RECORDING_DIR"); dir != "" {
		c.Recording.OutputDir = dir
	}
	if addr := os.Getenv("CAMFLEET_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}
