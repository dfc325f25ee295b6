package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Export    ExportConfig    `mapstructure:"export"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port" env:"PORT" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" env:"DB_HOST" validate:"required"`
	Port            int           `mapstructure:"port" env:"DB_PORT" validate:"required,min=1,max=65535"`
	Name            string        `mapstructure:"name" env:"DB_NAME" validate:"required"`
	User            string        `mapstructure:"user" env:"DB_USER" validate:"required"`
	Password        string        `mapstructure:"password" env:"DB_PASSWORD" validate:"required"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" env:"DB_QUERY_TIMEOUT" validate:"gt=0"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

type ExportConfig struct {
	Path string `mapstructure:"path" env:"EXPORT_PATH" validate:"required"`
}

// NATSConfig is optional: an empty URL disables event publishing.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

var envBindings = map[string]string{
	"env":                         "ENV",
	"server.port":                 "PORT",
	"server.read_timeout":         "SERVER_READ_TIMEOUT",
	"server.write_timeout":        "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":         "SERVER_IDLE_TIMEOUT",
	"server.cors_origins":         "CORS_ORIGINS",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.name":               "DB_NAME",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.ssl_mode":           "DB_SSL_MODE",
	"database.max_open_conns":     "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":     "DB_MAX_IDLE_CONNS",
	"database.conn_max_lifetime":  "DB_CONN_MAX_LIFETIME",
	"database.conn_max_idle_time": "DB_CONN_MAX_IDLE_TIME",
	"database.connect_timeout":    "DB_CONNECT_TIMEOUT",
	"database.query_timeout":      "DB_QUERY_TIMEOUT",
	"database.ensure_schema":      "DB_ENSURE_SCHEMA",
	"export.path":                 "EXPORT_PATH",
	"nats.url":                    "NATS_URL",
	"nats.subject":                "NATS_SUBJECT",
	"telemetry.otlp_endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
	"log.level":                   "LOG_LEVEL",
	"log.file":                    "LOG_FILE",
	"log.max_size_mb":             "LOG_MAX_SIZE_MB",
	"log.max_backups":             "LOG_MAX_BACKUPS",
	"log.max_age_days":            "LOG_MAX_AGE_DAYS",
	"log.compress":                "LOG_COMPRESS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", time.Minute)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.query_timeout", 10*time.Second)
	v.SetDefault("database.ensure_schema", true)
	v.SetDefault("export.path", "exports/student_data.xlsx")
	v.SetDefault("nats.subject", "students.events")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

// Load reads config.<ENV>.yaml when present, then applies environment
// overrides. The database connection settings have no defaults and must be
// provided; Load fails when any of them is missing.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs") // Kubernetes mount
	v.AddConfigPath("./configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setDefaults(v)
	for key, envVar := range envBindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every missing or invalid required setting by its
// environment variable name.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("env"); name != "" {
			return name
		}
		return field.Name
	})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	var missing, invalid []string
	for _, fe := range validationErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
}
