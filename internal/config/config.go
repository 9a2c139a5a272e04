package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TriggerSpec defines when a time-triggered job fires and which lesson date
// it targets relative to the day it fires on.
type TriggerSpec struct {
	At         string `yaml:"at"` // HH:MM in the studio timezone
	OffsetDays int    `yaml:"offset_days"`
}

// VenueOverride routes one (weekday, slot) cell to an alternate venue.
type VenueOverride struct {
	Weekday string `yaml:"weekday"` // english weekday name, e.g. "tuesday"
	Slot    string `yaml:"slot"`    // morning | evening
	Venue   string `yaml:"venue"`
}

// VenueConfig maps classes to halls: a default plus per-(weekday, slot)
// overrides.
type VenueConfig struct {
	Default   string          `yaml:"default"`
	Overrides []VenueOverride `yaml:"overrides"`
}

type Config struct {
	Telegram struct {
		BotToken  string `yaml:"bot_token"`
		ChannelID int64  `yaml:"channel_id"`
		Debug     bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Admins []int64 `yaml:"admins"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Schedule struct {
		// Timezone is the studio's civil timezone, not the host's.
		Timezone string `yaml:"timezone"`
		// TargetOffsetDays selects which date notifications announce:
		// 0 = today, 1 = tomorrow.
		TargetOffsetDays int    `yaml:"target_offset_days"`
		MorningAt        string `yaml:"morning_at"`
		EveningAt        string `yaml:"evening_at"`
		AbsenceAt        string `yaml:"absence_at"`
	} `yaml:"schedule"`

	Cleanup struct {
		Morning       TriggerSpec `yaml:"morning"`
		Evening       TriggerSpec `yaml:"evening"`
		Absence       TriggerSpec `yaml:"absence"`
		SweepAt       string      `yaml:"sweep_at"`
		RetentionDays int         `yaml:"retention_days"`
	} `yaml:"cleanup"`

	Venues VenueConfig `yaml:"venues"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	AdminStateTimeoutMinutes int `yaml:"admin_state_timeout_minutes"`
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
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/shala.db"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Europe/Moscow"
	}
	if c.Schedule.TargetOffsetDays <= 0 {
		c.Schedule.TargetOffsetDays = 1
	}
	if c.Schedule.MorningAt == "" {
		c.Schedule.MorningAt = "12:00"
	}
	if c.Schedule.EveningAt == "" {
		c.Schedule.EveningAt = "18:00"
	}
	if c.Schedule.AbsenceAt == "" {
		c.Schedule.AbsenceAt = "14:00"
	}
	if c.Cleanup.Morning.At == "" {
		c.Cleanup.Morning = TriggerSpec{At: "08:00", OffsetDays: -1}
	}
	if c.Cleanup.Evening.At == "" {
		c.Cleanup.Evening = TriggerSpec{At: "16:00", OffsetDays: -1}
	}
	if c.Cleanup.Absence.At == "" {
		c.Cleanup.Absence = TriggerSpec{At: "23:30", OffsetDays: 0}
	}
	if c.Cleanup.SweepAt == "" {
		c.Cleanup.SweepAt = "02:00"
	}
	if c.Cleanup.RetentionDays <= 0 {
		c.Cleanup.RetentionDays = 7
	}
	if c.Venues.Default == "" {
		c.Venues.Default = "Yoga Shala"
		c.Venues.Overrides = []VenueOverride{
			{Weekday: "tuesday", Slot: "evening", Venue: "Аргуновский"},
		}
	}
	if c.AdminStateTimeoutMinutes <= 0 {
		c.AdminStateTimeoutMinutes = 30
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "backups"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 14
	}
}

// Validate checks everything that must be correct before startup. Errors here
// are configuration errors and not recoverable at runtime.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return fmt.Errorf("telegram.bot_token is not set")
	}
	if c.Telegram.ChannelID == 0 {
		return fmt.Errorf("telegram.channel_id is not set")
	}
	if len(c.Admins) == 0 {
		return fmt.Errorf("admins list is empty")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone %q: %w", c.Schedule.Timezone, err)
	}
	for name, at := range map[string]string{
		"schedule.morning_at": c.Schedule.MorningAt,
		"schedule.evening_at": c.Schedule.EveningAt,
		"schedule.absence_at": c.Schedule.AbsenceAt,
		"cleanup.morning.at":  c.Cleanup.Morning.At,
		"cleanup.evening.at":  c.Cleanup.Evening.At,
		"cleanup.absence.at":  c.Cleanup.Absence.At,
		"cleanup.sweep_at":    c.Cleanup.SweepAt,
	} {
		if _, _, err := ParseClock(at); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for _, ov := range c.Venues.Overrides {
		if _, err := ParseWeekday(ov.Weekday); err != nil {
			return fmt.Errorf("venues.overrides: %w", err)
		}
		if ov.Slot != "morning" && ov.Slot != "evening" {
			return fmt.Errorf("venues.overrides: unknown slot %q", ov.Slot)
		}
	}
	return nil
}

// Location returns the studio timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AdminStateTimeout returns the inactivity window after which a pending
// admin edit is dropped.
func (c *Config) AdminStateTimeout() time.Duration {
	return time.Duration(c.AdminStateTimeoutMinutes) * time.Minute
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday parses an english weekday name (case-insensitive).
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return wd, nil
}
