package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Notify     NotifyConfig     `yaml:"notify"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type RecognizerConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	// DefaultMatchThreshold is the similarity floor (0–100) applied when a
	// match request does not override it.
	DefaultMatchThreshold float64 `yaml:"default_match_threshold"`
	// MaxFaces caps how many ranked candidates a search may return.
	MaxFaces int `yaml:"max_faces"`
}

type NotifyConfig struct {
	// Provider selects the notification channel: "sms" or "noop".
	Provider            string `yaml:"provider"`
	AccountSID          string `yaml:"account_sid"`
	AuthToken           string `yaml:"auth_token"`
	MessagingServiceSID string `yaml:"messaging_service_sid"`
	BaseURL             string `yaml:"base_url"`
	CountryPrefix       string `yaml:"country_prefix"`
	// MessageTemplate may reference {name}.
	MessageTemplate string `yaml:"message_template"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable
// overrides. A local .env file is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Recognizer.DetectionThreshold == 0 {
		cfg.Recognizer.DetectionThreshold = 0.5
	}
	if cfg.Recognizer.DefaultMatchThreshold == 0 {
		cfg.Recognizer.DefaultMatchThreshold = 90
	}
	if cfg.Recognizer.MaxFaces == 0 {
		cfg.Recognizer.MaxFaces = 4096
	}
	if cfg.Notify.Provider == "" {
		cfg.Notify.Provider = "noop"
	}
	if cfg.Notify.BaseURL == "" {
		cfg.Notify.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	if cfg.Notify.CountryPrefix == "" {
		cfg.Notify.CountryPrefix = "+57"
	}
	if cfg.Notify.MessageTemplate == "" {
		cfg.Notify.MessageTemplate = "Bienvenido {name}, su requerimiento será atendido en breve."
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEGATE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FACEGATE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEGATE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACEGATE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACEGATE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACEGATE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEGATE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACEGATE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACEGATE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACEGATE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEGATE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FACEGATE_MODELS_DIR"); v != "" {
		cfg.Recognizer.ModelsDir = v
	}
	if v := os.Getenv("FACEGATE_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognizer.DefaultMatchThreshold = f
		}
	}
	if v := os.Getenv("FACEGATE_NOTIFY_PROVIDER"); v != "" {
		cfg.Notify.Provider = v
	}
	if v := os.Getenv("FACEGATE_NOTIFY_ACCOUNT_SID"); v != "" {
		cfg.Notify.AccountSID = v
	}
	if v := os.Getenv("FACEGATE_NOTIFY_AUTH_TOKEN"); v != "" {
		cfg.Notify.AuthToken = v
	}
	if v := os.Getenv("FACEGATE_NOTIFY_MESSAGING_SERVICE_SID"); v != "" {
		cfg.Notify.MessagingServiceSID = v
	}
}
