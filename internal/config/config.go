package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	API           APIConfig           `json:"api"`
	Session       SessionConfig       `json:"session"`
	Database      DatabaseConfig      `json:"database"`
	AWS           AWSConfig           `json:"aws"`
	Export        ExportConfig        `json:"export"`
	Notifications NotificationsConfig `json:"notifications"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// APIConfig describes the remote closures service.
type APIConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// SessionConfig controls how portal sessions are kept.
type SessionConfig struct {
	// Store is "memory" or "postgres".
	Store          string        `json:"store"`
	Secret         string        `json:"secret"`
	CookieName     string        `json:"cookie_name"`
	CookieSecure   bool          `json:"cookie_secure"`
	TTL            time.Duration `json:"ttl"`
	ResolveTimeout time.Duration `json:"resolve_timeout"`
	SweepSchedule  string        `json:"sweep_schedule"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// AWSConfig
type AWSConfig struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// ExportConfig drives the approved closures map export worker.
type ExportConfig struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Schedule string `json:"schedule"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// NotificationsConfig
type NotificationsConfig struct {
	TopicARN string `json:"topic_arn"`
}

// SecurityConfig
type SecurityConfig struct {
	LoginRatePerMinute int   `json:"login_rate_per_minute"`
	LoginBurst         int   `json:"login_burst"`
	MaxUploadSize      int64 `json:"max_upload_size"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is applied before the environment is read.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			Store:          "memory",
			CookieName:     "closure_session",
			TTL:            12 * time.Hour,
			ResolveTimeout: 2 * time.Second,
			SweepSchedule:  "0 */10 * * * *",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "closure_portal",
			SSLMode:        "disable",
			MaxConnections: 10,
			MaxIdleConns:   2,
			MaxLifetime:    time.Hour,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Export: ExportConfig{
			Key:      "exports/approved-closures.geojson",
			Schedule: "0 0 * * * *",
		},
		Security: SecurityConfig{
			LoginRatePerMinute: 10,
			LoginBurst:         5,
			MaxUploadSize:      20 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func overrideWithEnv(config *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT: %w", err)
		}
		config.Server.Port = p
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	if baseURL := os.Getenv("API_BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if timeout := os.Getenv("API_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid API_TIMEOUT: %w", err)
		}
		config.API.Timeout = d
	}

	if store := os.Getenv("SESSION_STORE"); store != "" {
		config.Session.Store = store
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		config.Session.Secret = secret
	}
	if secure := os.Getenv("SESSION_COOKIE_SECURE"); secure != "" {
		b, err := strconv.ParseBool(secure)
		if err != nil {
			return fmt.Errorf("invalid SESSION_COOKIE_SECURE: %w", err)
		}
		config.Session.CookieSecure = b
	}
	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		config.Session.TTL = d
	}

	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		config.AWS.Endpoint = endpoint
	}

	if bucket := os.Getenv("EXPORT_BUCKET"); bucket != "" {
		config.Export.Bucket = bucket
	}
	if key := os.Getenv("EXPORT_KEY"); key != "" {
		config.Export.Key = key
	}
	if schedule := os.Getenv("EXPORT_SCHEDULE"); schedule != "" {
		config.Export.Schedule = schedule
	}
	if user := os.Getenv("EXPORT_USERNAME"); user != "" {
		config.Export.Username = user
	}
	if pass := os.Getenv("EXPORT_PASSWORD"); pass != "" {
		config.Export.Password = pass
	}

	if topic := os.Getenv("NOTIFICATIONS_TOPIC_ARN"); topic != "" {
		config.Notifications.TopicARN = topic
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	return nil
}

// Validate checks the settings the portal cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	switch c.Session.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
