package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keanulaw/NeoCare-App/internal/models"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Recommendation struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"recommendation"`

	Booking struct {
		LookaheadDays         int    `yaml:"lookahead_days"`
		PreviewDates          int    `yaml:"preview_dates"`
		Timezone              string `yaml:"timezone"`
		SessionTimeoutMinutes int    `yaml:"session_timeout_minutes"`
	} `yaml:"booking"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsPath string `yaml:"credentials_path"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"sheets"`

	RateLimit struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
		Burst             int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	ConsultantsPath string `yaml:"consultants_path"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/neocare.db"
	}
	if cfg.Booking.LookaheadDays <= 0 {
		cfg.Booking.LookaheadDays = 14
	}
	if cfg.Booking.PreviewDates <= 0 {
		cfg.Booking.PreviewDates = 5
	}
	if cfg.Booking.Timezone == "" {
		cfg.Booking.Timezone = "Asia/Manila"
	}
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "backups"
	}
	if cfg.Backup.IntervalHours <= 0 {
		cfg.Backup.IntervalHours = 24
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 14
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 30
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the booking timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Booking.Timezone, err)
	}
	return loc, nil
}

// SessionTimeout returns the idle timeout for abandoned conversations.
func (c *Config) SessionTimeout() time.Duration {
	if c.Booking.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

// RecommendationCacheTTL returns how long recommendation responses are
// cached in Redis.
func (c *Config) RecommendationCacheTTL() time.Duration {
	if c.Recommendation.CacheTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.Recommendation.CacheTTLSeconds) * time.Second
}

type consultantsFile struct {
	Consultants []struct {
		ID                string   `yaml:"id"`
		Name              string   `yaml:"name"`
		Specialty         string   `yaml:"specialty"`
		HourlyRate        float64  `yaml:"hourly_rate"`
		AvailableDays     []string `yaml:"available_days"`
		ConsultationHours []string `yaml:"consultation_hours"`
	} `yaml:"consultants"`
}

// LoadConsultants reads the consultant seed file.
func LoadConsultants(path string) ([]*models.Consultant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file consultantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse consultants file: %w", err)
	}

	out := make([]*models.Consultant, 0, len(file.Consultants))
	for _, c := range file.Consultants {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("consultant entry missing id or name: %+v", c)
		}
		out = append(out, &models.Consultant{
			ID:                c.ID,
			Name:              c.Name,
			Specialty:         c.Specialty,
			HourlyRate:        c.HourlyRate,
			AvailableDays:     c.AvailableDays,
			ConsultationHours: c.ConsultationHours,
		})
	}
	return out, nil
}
