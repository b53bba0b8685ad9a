package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath    string
	LogLevel  string
	HTTPAddr  string
	InboxDir  string
	CRM       CRMConfig
	Geocode   GeocodeConfig
	Scheduler SchedulerConfig
	Farm      FarmConfig
}

type CRMConfig struct {
	DBURL string // optional; empty disables the secondary CRM pool
}

type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
	MinDelay  time.Duration // provider usage policy: at least 1s between requests
	Timeout   time.Duration
}

type SchedulerConfig struct {
	SweepCron  string
	IngestCron string
}

// FarmConfig holds the farm area and all scoring/queue tuning values.
// Loaded from a YAML file so thresholds can change without a rebuild.
type FarmConfig struct {
	Suburbs []string      `yaml:"suburbs"`
	Scoring ScoringConfig `yaml:"scoring"`
	Queue   QueueConfig   `yaml:"queue"`
}

type ScoringConfig struct {
	TopN           int       `yaml:"top_n"`
	MinResults     int       `yaml:"min_results"`
	SameStreet     int       `yaml:"same_street"`
	SuburbFloor    int       `yaml:"suburb_floor"`
	GeoTiers       []GeoTier `yaml:"geo_tiers"`
	AvenueAdjacent int       `yaml:"avenue_adjacent"`
	AvenueTwoApart int       `yaml:"avenue_two_apart"`

	CallbackBonus      int `yaml:"callback_bonus"`
	RecentBonus        int `yaml:"recent_bonus"`
	OlderBonus         int `yaml:"older_bonus"`
	RecentWindowDays   int `yaml:"recent_window_days"`
	OlderWindowDays    int `yaml:"older_window_days"`

	CategoryBonus int `yaml:"category_bonus"`
	BedExactBonus int `yaml:"bed_exact_bonus"`
	BedCloseBonus int `yaml:"bed_close_bonus"`
}

// GeoTier maps a haversine distance band to a score. Tiers are evaluated in
// order; the first band the distance fits wins.
type GeoTier struct {
	MaxMeters float64 `yaml:"max_meters"`
	Score     int     `yaml:"score"`
}

type QueueConfig struct {
	SnoozeLeftMessageDays int `yaml:"snooze_left_message_days"`
	SnoozeNoAnswerDays    int `yaml:"snooze_no_answer_days"`
	CooldownDays          int `yaml:"cooldown_days"`
	EventBoostWindowDays  int `yaml:"event_boost_window_days"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:   getEnv("DB_PATH", "prospector.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8085"),
		InboxDir: getEnv("INBOX_DIR", "inbox"),
		CRM: CRMConfig{
			DBURL: os.Getenv("CRM_DB_URL"),
		},
		Geocode: GeocodeConfig{
			BaseURL:   getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org/search"),
			UserAgent: getEnv("GEOCODE_USER_AGENT", "farm_prospector/1.0"),
			MinDelay:  time.Duration(getEnvInt("GEOCODE_MIN_DELAY_MS", 1000)) * time.Millisecond,
			Timeout:   time.Duration(getEnvInt("GEOCODE_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			SweepCron:  getEnv("SWEEP_CRON", "15 6 * * *"),
			IngestCron: os.Getenv("INGEST_CRON"),
		},
		Farm: DefaultFarmConfig(),
	}

	farmPath := getEnv("FARM_CONFIG", "config/farm.yaml")
	if err := cfg.loadFarmConfig(farmPath); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultFarmConfig carries the heuristic tuning values used when the YAML
// file does not override them.
func DefaultFarmConfig() FarmConfig {
	return FarmConfig{
		Suburbs: []string{"Willoughby", "Willoughby East", "North Willoughby"},
		Scoring: ScoringConfig{
			TopN:        30,
			MinResults:  8,
			SameStreet:  40,
			SuburbFloor: 5,
			GeoTiers: []GeoTier{
				{MaxMeters: 150, Score: 35},
				{MaxMeters: 400, Score: 28},
				{MaxMeters: 800, Score: 20},
				{MaxMeters: 1500, Score: 12},
				{MaxMeters: 3000, Score: 8},
			},
			AvenueAdjacent: 30,
			AvenueTwoApart: 18,

			CallbackBonus:    25,
			RecentBonus:      15,
			OlderBonus:       8,
			RecentWindowDays: 30,
			OlderWindowDays:  90,

			CategoryBonus: 10,
			BedExactBonus: 8,
			BedCloseBonus: 4,
		},
		Queue: QueueConfig{
			SnoozeLeftMessageDays: 3,
			SnoozeNoAnswerDays:    2,
			CooldownDays:          120,
			EventBoostWindowDays:  14,
		},
	}
}

func (c *Config) loadFarmConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read farm config: %w", err)
	}

	if err := yaml.Unmarshal(data, &c.Farm); err != nil {
		return fmt.Errorf("parse farm config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
