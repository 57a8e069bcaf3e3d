// Package config loads the daemon's environment configuration and the
// device layout file that describes the instrument and its gates.
package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	HTTPAddr    string // GATEMAN_HTTP_ADDR (default ":7667")
	DatabaseURL string // GATEMAN_DATABASE_URL (optional, empty = no run history)
	NATSURL     string // GATEMAN_NATS_URL (optional, empty = no events)
	AuthToken   string // GATEMAN_AUTH_TOKEN (optional, empty = auth disabled)

	DeviceFile string // GATEMAN_DEVICE_FILE (default "device.toml")
	WorkDir    string // GATEMAN_WORK_DIR (default "."; data/ and log.txt live here)

	// ConductorQuantum analysis platform
	CQToken string // GATEMAN_CQ_TOKEN (optional, empty = analysis disabled)
	CQURL   string // GATEMAN_CQ_URL (optional, empty = production endpoint)

	// Archive settings
	ArchiveInterval   time.Duration // GATEMAN_ARCHIVE_INTERVAL (default 10m; 0 = disabled)
	ArchiveS3Bucket   string        // GATEMAN_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // GATEMAN_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // GATEMAN_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string        // GATEMAN_ARCHIVE_S3_PREFIX (default "gateman/runs")
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:          envOrDefault("GATEMAN_HTTP_ADDR", ":7667"),
		DatabaseURL:       os.Getenv("GATEMAN_DATABASE_URL"),
		NATSURL:           os.Getenv("GATEMAN_NATS_URL"),
		AuthToken:         os.Getenv("GATEMAN_AUTH_TOKEN"),
		DeviceFile:        envOrDefault("GATEMAN_DEVICE_FILE", "device.toml"),
		WorkDir:           envOrDefault("GATEMAN_WORK_DIR", "."),
		CQToken:           os.Getenv("GATEMAN_CQ_TOKEN"),
		CQURL:             os.Getenv("GATEMAN_CQ_URL"),
		ArchiveS3Bucket:   os.Getenv("GATEMAN_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("GATEMAN_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("GATEMAN_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("GATEMAN_ARCHIVE_S3_PREFIX", "gateman/runs"),
	}

	intervalStr := envOrDefault("GATEMAN_ARCHIVE_INTERVAL", "10m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("GATEMAN_ARCHIVE_INTERVAL: %w", err)
		}
		c.ArchiveInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
