package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

const (
	EngineModeLocal  = "local"
	EngineModeDocker = "docker"

	OutputStdout = "stdout"
	OutputFile   = "file"
)

type Config struct {
	Server struct {
		Host               string        `yaml:"host"`
		Port               int           `yaml:"port"`
		ReadTimeout        time.Duration `yaml:"readTimeout"`
		WriteTimeout       time.Duration `yaml:"writeTimeout"`
		IdleTimeout        time.Duration `yaml:"idleTimeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
		MaxBodyBytes       int64         `yaml:"maxBodyBytes"`
		APIKeys            []string      `yaml:"apiKeys"`
		CORSAllowedOrigins []string      `yaml:"corsAllowedOrigins"`
		BlockPrivateHosts  bool          `yaml:"blockPrivateHosts"`
	} `yaml:"server"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`

	Git struct {
		Binary string `yaml:"binary"`
		Depth  int    `yaml:"depth"`
	} `yaml:"git"`

	Engine struct {
		Binary      string        `yaml:"binary"`
		Mode        string        `yaml:"mode"`
		DockerImage string        `yaml:"dockerImage"`
		OutputMode  string        `yaml:"outputMode"`
		Timeout     time.Duration `yaml:"timeout"`
		ExtraArgs   []string      `yaml:"extraArgs"`
	} `yaml:"engine"`

	Workspace struct {
		BaseDir         string        `yaml:"baseDir"`
		JanitorInterval time.Duration `yaml:"janitorInterval"`
		JanitorMaxAge   time.Duration `yaml:"janitorMaxAge"`
	} `yaml:"workspace"`

	Database struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Provider       string `yaml:"provider"`
		APIKey         string `yaml:"apiKey"`
		Model          string `yaml:"model"`
		MaxReportBytes int    `yaml:"maxReportBytes"`
	} `yaml:"ai"`

	Log struct {
		Debug bool `yaml:"debug"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 7070
	cfg.Server.ReadTimeout = 15 * time.Second
	// scans are unbounded unless engine.timeout is set
	cfg.Server.WriteTimeout = 0
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 20 * time.Second
	cfg.Server.MaxBodyBytes = 1 << 20
	// rps 0 disables the limiter
	cfg.RateLimit.RPS = 0
	cfg.RateLimit.Burst = 5
	cfg.Git.Binary = "git"
	cfg.Engine.Binary = "horusec"
	cfg.Engine.Mode = EngineModeLocal
	cfg.Engine.DockerImage = "horuszup/horusec-cli:latest"
	cfg.Engine.OutputMode = OutputStdout
	cfg.Workspace.BaseDir = os.TempDir()
	cfg.Workspace.JanitorInterval = time.Hour
	cfg.Workspace.JanitorMaxAge = time.Hour
	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.MaxReportBytes = 64 << 10
	return &cfg
}

// Load baca file config yaml di atas nilai default. A missing file is only
// tolerated for DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HORUSEC_BINARY"); v != "" {
		c.Engine.Binary = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("ENGINE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ENGINE_TIMEOUT: %w", err)
		}
		c.Engine.Timeout = d
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Engine.Mode {
	case EngineModeLocal, EngineModeDocker:
	default:
		return fmt.Errorf("invalid engine.mode %q (allowed: local, docker)", c.Engine.Mode)
	}
	switch c.Engine.OutputMode {
	case OutputStdout, OutputFile:
	default:
		return fmt.Errorf("invalid engine.outputMode %q (allowed: stdout, file)", c.Engine.OutputMode)
	}
	if c.Engine.Timeout < 0 {
		return errors.New("engine.timeout must not be negative")
	}
	if c.Server.WriteTimeout > 0 && (c.Engine.Timeout == 0 || c.Server.WriteTimeout <= c.Engine.Timeout) {
		return fmt.Errorf("server.writeTimeout %s would cut responses of scans still running (engine.timeout %s)",
			c.Server.WriteTimeout, c.Engine.Timeout)
	}
	if c.RateLimit.RPS < 0 {
		return errors.New("rateLimit.rps must not be negative")
	}
	switch c.Database.Driver {
	case "", "memory", "mysql", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "", "local":
	case "openai":
		if c.AI.APIKey == "" {
			return errors.New("ai.apiKey (or OPENAI_API_KEY) is required for the openai provider")
		}
	default:
		return fmt.Errorf("invalid ai.provider %q", c.AI.Provider)
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		return errors.New("minio.endpoint and minio.bucketName are required when minio is enabled")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}
