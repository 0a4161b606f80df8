package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

const defaultResendWindowSeconds = 60

type APIConfig struct {
	BaseURL        string `yaml:"base_url" env:"API_BASE_URL" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"API_TIMEOUT_SECONDS" validate:"gte=1"`
	CSRFCookie     string `yaml:"csrf_cookie" env:"API_CSRF_COOKIE" validate:"required"`
	CSRFHeader     string `yaml:"csrf_header" env:"API_CSRF_HEADER" validate:"required"`
	// PrimePath is fetched once to obtain the CSRF cookie.
	PrimePath string `yaml:"prime_path" env:"API_PRIME_PATH"`
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type WizardConfig struct {
	CodeTTLSeconds        int `yaml:"code_ttl_seconds" env:"WIZARD_CODE_TTL_SECONDS" validate:"gte=1"`
	ResendCooldownSeconds int `yaml:"resend_cooldown_seconds" env:"WIZARD_RESEND_COOLDOWN_SECONDS" validate:"gte=1"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"PORT" validate:"gte=1,lte=65535"`
}

type DatabaseConfig struct {
	DSN string `yaml:"url" env:"DATABASE_URL"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USERNAME"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	FromEmail    string `yaml:"from_email" env:"SMTP_FROM"`
	// DryRun logs codes instead of sending mail.
	DryRun bool `yaml:"dry_run" env:"EMAIL_DRY_RUN"`
}

type DevAPIConfig struct {
	OTPTTLSeconds       int  `yaml:"otp_ttl_seconds" env:"OTP_TTL_SECONDS" validate:"gte=1"`
	// ResendWindowSeconds is unset for the default; an explicit 0 turns
	// throttling off.
	ResendWindowSeconds *int `yaml:"resend_window_seconds" env:"OTP_RESEND_WINDOW_SECONDS" validate:"omitempty,gte=0"`
	MaxAttempts         int  `yaml:"max_attempts" env:"OTP_MAX_ATTEMPTS" validate:"gte=1"`
	BcryptCost          int  `yaml:"bcrypt_cost" env:"BCRYPT_COST" validate:"gte=4,lte=31"`
}

func (c DevAPIConfig) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLSeconds) * time.Second
}

func (c DevAPIConfig) ResendWindow() time.Duration {
	if c.ResendWindowSeconds == nil {
		return defaultResendWindowSeconds * time.Second
	}
	return time.Duration(*c.ResendWindowSeconds) * time.Second
}

// SeedUser is an account created when the dev API starts on in-memory storage.
type SeedUser struct {
	Email    string `yaml:"email" validate:"required"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role" validate:"required,oneof=burner leader admin"`
	Password string `yaml:"password" validate:"required"`
}

type Config struct {
	API       APIConfig      `yaml:"api"`
	Wizard    WizardConfig   `yaml:"wizard"`
	Log       LogConfig      `yaml:"log"`
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Email     EmailConfig    `yaml:"email"`
	DevAPI    DevAPIConfig   `yaml:"devapi"`
	SeedUsers []SeedUser     `yaml:"seed_users" validate:"dive"`
}

// Load reads the yaml file at path, applies environment overrides and fills
// defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Sections are parsed one by one so the seed user list is left alone.
	for _, section := range []any{&cfg.API, &cfg.Wizard, &cfg.Log, &cfg.Server, &cfg.Database, &cfg.Email, &cfg.DevAPI} {
		if err := env.Parse(section); err != nil {
			return nil, fmt.Errorf("environment: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads DefaultPath, or the file named by CONFIG_PATH, and panics
// on failure.
func LoadConfig() *Config {
	path := DefaultPath
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		path = p
	}
	cfg, err := Load(path)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000"
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 15
	}
	if c.API.CSRFCookie == "" {
		c.API.CSRFCookie = "csrftoken"
	}
	if c.API.CSRFHeader == "" {
		c.API.CSRFHeader = "X-CSRFToken"
	}
	if c.API.PrimePath == "" {
		c.API.PrimePath = "/forgot-password/"
	}
	if c.Wizard.CodeTTLSeconds == 0 {
		c.Wizard.CodeTTLSeconds = 300
	}
	if c.Wizard.ResendCooldownSeconds == 0 {
		c.Wizard.ResendCooldownSeconds = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.DevAPI.OTPTTLSeconds == 0 {
		c.DevAPI.OTPTTLSeconds = 300
	}
	if c.DevAPI.ResendWindowSeconds == nil {
		w := defaultResendWindowSeconds
		c.DevAPI.ResendWindowSeconds = &w
	}
	if c.DevAPI.MaxAttempts == 0 {
		c.DevAPI.MaxAttempts = 5
	}
	if c.DevAPI.BcryptCost == 0 {
		c.DevAPI.BcryptCost = 10
	}
}

// Validate checks value ranges after defaults have been applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
