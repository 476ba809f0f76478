package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name     string        `envconfig:"APP_NAME" default:"sapsync"`
		Port     int           `envconfig:"PORT" default:"8080"`
		Timezone string        `envconfig:"APP_TIMEZONE" default:"Asia/Kuala_Lumpur"`
		Mode     string        `envconfig:"APP_MODE" default:"serve"`
		Jobs     []string      `envconfig:"APP_JOBS"`
		Interval time.Duration `envconfig:"APP_INTERVAL" default:"1h"`
		LogLevel string        `envconfig:"LOG_LEVEL" default:"info"`
		LogJSON  bool          `envconfig:"LOG_JSON" default:"false"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"ppa"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	}

	Transfer struct {
		Driver      string `envconfig:"TRANSFER_DRIVER" default:"sftp"`
		OutgoingDir string `envconfig:"TRANSFER_OUTGOING_DIR" default:"{doc}/Outgoing"`
		StatusDir   string `envconfig:"TRANSFER_STATUS_DIR" default:"{doc}/Status/Read"`
		InboundDir  string `envconfig:"TRANSFER_INBOUND_DIR" default:"{doc}/Incoming"`

		SFTP struct {
			Host       string        `envconfig:"TRANSFER_SFTP_HOST"`
			Port       int           `envconfig:"TRANSFER_SFTP_PORT" default:"22"`
			User       string        `envconfig:"TRANSFER_SFTP_USER"`
			Password   string        `envconfig:"TRANSFER_SFTP_PASSWORD"`
			KnownHosts string        `envconfig:"TRANSFER_SFTP_KNOWN_HOSTS"`
			Timeout    time.Duration `envconfig:"TRANSFER_SFTP_TIMEOUT" default:"30s"`
		}

		Local struct {
			Root string `envconfig:"TRANSFER_LOCAL_ROOT" default:"./data/sap"`
		}

		GCS struct {
			Bucket string `envconfig:"TRANSFER_GCS_BUCKET"`
			Prefix string `envconfig:"TRANSFER_GCS_PREFIX"`
		}
	}

	SAP struct {
		Sender          string        `envconfig:"SAP_SENDER_ID" default:"PPA"`
		ChunkSize       int           `envconfig:"SAP_CHUNK_SIZE" default:"1000"`
		InboundLookback time.Duration `envconfig:"SAP_INBOUND_LOOKBACK" default:"24h"`
	}
}

const (
	ModeServe = "serve"
	ModeOnce  = "once"

	DriverSFTP  = "sftp"
	DriverLocal = "local"
	DriverGCS   = "gcs"
)

func (c *Config) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}

	return u.String()
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.App.Timezone, err)
	}

	return loc, nil
}

func (c *Config) validate() error {
	switch c.App.Mode {
	case ModeServe, ModeOnce:
	default:
		return fmt.Errorf("APP_MODE must be %q or %q, got %q", ModeServe, ModeOnce, c.App.Mode)
	}

	switch c.Transfer.Driver {
	case DriverSFTP:
		if c.Transfer.SFTP.Host == "" || c.Transfer.SFTP.User == "" {
			return fmt.Errorf("TRANSFER_SFTP_HOST and TRANSFER_SFTP_USER are required for the sftp driver")
		}
	case DriverLocal:
	case DriverGCS:
		if c.Transfer.GCS.Bucket == "" {
			return fmt.Errorf("TRANSFER_GCS_BUCKET is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unknown TRANSFER_DRIVER %q", c.Transfer.Driver)
	}

	if c.SAP.ChunkSize <= 0 {
		return fmt.Errorf("SAP_CHUNK_SIZE must be positive, got %d", c.SAP.ChunkSize)
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
