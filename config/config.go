package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	FreightTrack FreightTrackConfig `yaml:"freighttrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	TrackingUpdatedTopicName string `yaml:"tracking_updated_topic_name"`
	ShipmentChangedTopicName string `yaml:"shipment_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type FreightTrackConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	FreshnessWindowHours    int `yaml:"freshness_window_hours"`
	CurrentStatusTTLSeconds int `yaml:"current_status_ttl_seconds"`

	ScrapeHub  ProviderConfig `yaml:"scrapehub"`
	TrackMile  ProviderConfig `yaml:"trackmile"`
	CargoPulse ProviderConfig `yaml:"cargopulse"`

	RefresherHTTPAddr            string         `yaml:"refresher_http_addr"`
	RefresherPollIntervalSeconds int            `yaml:"refresher_poll_interval_seconds"`
	RefresherBatchSize           int            `yaml:"refresher_batch_size"`
	RefresherConcurrency         int            `yaml:"refresher_concurrency"`
	RefresherLeaseSeconds        int            `yaml:"refresher_lease_seconds"`
	RefresherRateLimitPerMinute  int            `yaml:"refresher_rate_limit_per_minute"`
	RefresherCarrierRateLimits   map[string]int `yaml:"refresher_carrier_rate_limits"`

	// Refresher scheduling (optional). If not set, defaults are "prod-like" minutes/hours:
	// in_transit: 30..120 minutes, unknown: 90 minutes, backoff: 5/15/30/60 minutes.
	RefresherNextCheckInTransitMinSeconds int `yaml:"refresher_next_check_in_transit_min_seconds"`
	RefresherNextCheckInTransitMaxSeconds int `yaml:"refresher_next_check_in_transit_max_seconds"`
	RefresherNextCheckUnknownSeconds      int `yaml:"refresher_next_check_unknown_seconds"`
	RefresherBackoff1Seconds              int `yaml:"refresher_backoff_1_seconds"`
	RefresherBackoff2Seconds              int `yaml:"refresher_backoff_2_seconds"`
	RefresherBackoff3Seconds              int `yaml:"refresher_backoff_3_seconds"`
	RefresherBackoff4Seconds              int `yaml:"refresher_backoff_4_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	// Local overrides (docker compose, dev shells). Missing .env is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	applyEnvOverrides(&config)

	return &config, nil
}

// Secrets are never required to live in the YAML file.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("FREIGHTTRACK_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("FREIGHTTRACK_SCRAPEHUB_API_KEY"); v != "" {
		c.FreightTrack.ScrapeHub.APIKey = v
	}
	if v := os.Getenv("FREIGHTTRACK_TRACKMILE_API_KEY"); v != "" {
		c.FreightTrack.TrackMile.APIKey = v
	}
	if v := os.Getenv("FREIGHTTRACK_CARGOPULSE_API_KEY"); v != "" {
		c.FreightTrack.CargoPulse.APIKey = v
	}
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}
