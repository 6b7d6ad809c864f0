// Package config loads server configuration from YAML with environment
// variable overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	CORS     CORSConfig     `yaml:"cors"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Manager  ManagerConfig  `yaml:"manager"`
	Direct   DirectConfig   `yaml:"direct"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAgeSeconds  int      `yaml:"max_age_seconds"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	JWTSecret      string `yaml:"jwt_secret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours"`
}

// ManagerConfig tunes the connection manager's fallback and batch behaviour.
type ManagerConfig struct {
	BatchConcurrency  int `yaml:"batch_concurrency"`
	TestTimeoutMS     int `yaml:"test_timeout_ms"`
	FallbackTimeoutMS int `yaml:"fallback_timeout_ms"`
}

// DirectConfig tunes direct device sessions (SSH/NETCONF/WinRM).
type DirectConfig struct {
	DialTimeoutMS    int `yaml:"dial_timeout_ms"`
	SessionTimeoutMS int `yaml:"session_timeout_ms"`
	SSHPort          int `yaml:"ssh_port"`
	WinRMPort        int `yaml:"winrm_port"`
	SNMPPort         int `yaml:"snmp_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// Load reads configuration from file and applies environment variable overrides
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate ensures all required configuration values are set
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("DEVCONN_AUTH_JWT_SECRET is required (minimum 32 characters)")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters")
	}

	if c.Auth.AdminPassword == "" || c.Auth.AdminPassword == "changeme" {
		return fmt.Errorf("DEVCONN_AUTH_ADMIN_PASSWORD must be set to a strong password")
	}

	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and dbname are required")
	}

	return nil
}

// applyEnvOverrides checks for environment variables with DEVCONN_ prefix
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVCONN_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DEVCONN_DATABASE_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Database.Port)
	}
	if v := os.Getenv("DEVCONN_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}

	if v := os.Getenv("DEVCONN_AUTH_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv("DEVCONN_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

// applyDefaults fills in sane values for optional tuning knobs.
func applyDefaults(cfg *Config) {
	if cfg.Manager.BatchConcurrency <= 0 {
		cfg.Manager.BatchConcurrency = 5
	}
	if cfg.Manager.TestTimeoutMS <= 0 {
		cfg.Manager.TestTimeoutMS = 15000
	}
	if cfg.Manager.FallbackTimeoutMS <= 0 {
		cfg.Manager.FallbackTimeoutMS = 30000
	}
	if cfg.Direct.DialTimeoutMS <= 0 {
		cfg.Direct.DialTimeoutMS = 5000
	}
	if cfg.Direct.SessionTimeoutMS <= 0 {
		cfg.Direct.SessionTimeoutMS = 30000
	}
	if cfg.Direct.SSHPort <= 0 {
		cfg.Direct.SSHPort = 22
	}
	if cfg.Direct.WinRMPort <= 0 {
		cfg.Direct.WinRMPort = 5985
	}
	if cfg.Direct.SNMPPort <= 0 {
		cfg.Direct.SNMPPort = 161
	}
}

// GetReadTimeout returns the read timeout as a duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// GetWriteTimeout returns the write timeout as a duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// GetDSN returns the PostgreSQL connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// GetJWTExpiry returns JWT expiry as duration
func (a *AuthConfig) GetJWTExpiry() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

// GetTestTimeout returns the connectivity test timeout as a duration
func (m *ManagerConfig) GetTestTimeout() time.Duration {
	return time.Duration(m.TestTimeoutMS) * time.Millisecond
}

// GetFallbackTimeout returns the per-fallback-attempt timeout as a duration
func (m *ManagerConfig) GetFallbackTimeout() time.Duration {
	return time.Duration(m.FallbackTimeoutMS) * time.Millisecond
}

// GetDialTimeout returns the direct dial timeout as a duration
func (d *DirectConfig) GetDialTimeout() time.Duration {
	return time.Duration(d.DialTimeoutMS) * time.Millisecond
}

// GetSessionTimeout returns the direct session timeout as a duration
func (d *DirectConfig) GetSessionTimeout() time.Duration {
	return time.Duration(d.SessionTimeoutMS) * time.Millisecond
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}
