package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration read from environment variables.
type Config struct {
	APIHost string `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort string `envconfig:"API_PORT" default:"8000"`
	Debug   bool   `envconfig:"DEBUG" default:"false"`

	// Path to the pre-built SQLite document store. The API only ever opens
	// it read-only; cmd/ingest is the sole writer.
	DatabasePath string `envconfig:"DATABASE_PATH" default:"database/sdo_papers_2010_2024.db"`

	// NASA ADS endpoints. The base URL serves the abstract pages and the
	// link gateway; the search URL is only used by cmd/ingest.
	ADSBaseURL   string `envconfig:"ADS_BASE_URL" default:"https://ui.adsabs.harvard.edu"`
	ADSSearchURL string `envconfig:"ADS_SEARCH_URL" default:"https://api.adsabs.harvard.edu/v1/search/query"`

	// Reserved for the ingest pipeline; the API itself never sends it.
	NASAADSAPIKey string `envconfig:"NASA_ADS_API_KEY"`

	DefaultPageSize int `envconfig:"DEFAULT_PAGE_SIZE" default:"100"`
	MaxPageSize     int `envconfig:"MAX_PAGE_SIZE" default:"1000"`

	StatsCronSchedule string `envconfig:"STATS_CRON_SCHEDULE" default:"@every 15m"`
}

// Load reads the configuration from the environment, honoring a local .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
