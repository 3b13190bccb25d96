// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AppConfig is the complete runtime configuration, loaded once at startup.
// Precedence is environment over defaults; there is no config file.
type AppConfig struct {
	// Upstream RESO Web API feed.
	ResoBaseURL       string
	ResoToken         string
	OriginatingSystem string

	// Relational store.
	DatabaseURL string

	// Search engine.
	MeiliHost      string
	MeiliMasterKey string
	MeiliIndex     string

	// Object store + CDN.
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	CDNBaseURL    string
	StoragePrefix string

	// Sync behaviour.
	BatchSize    int
	SyncInterval time.Duration
	ResetOnStart bool

	// Per-resource test caps; zero means unlimited.
	MaxProperties int
	MaxMembers    int
	MaxOffices    int
	MaxOpenHouses int

	// Rate governors.
	APIMinInterval   time.Duration
	MediaMinInterval time.Duration
	HourlyRequestCap int

	// Ops server.
	OpsListen string

	LogLevel string
}

// Load reads the full configuration from the environment.
func Load() AppConfig {
	return AppConfig{
		ResoBaseURL:       strings.TrimRight(ParseString("RESO_BASE_URL", ""), "/"),
		ResoToken:         ParseString("RESO_TOKEN", ""),
		OriginatingSystem: ParseString("RESO_ORIGINATING_SYSTEM", ""),

		DatabaseURL: ParseString("DATABASE_URL", ""),

		MeiliHost:      ParseString("MEILI_HOST", ""),
		MeiliMasterKey: ParseString("MEILI_MASTER_KEY", ""),
		MeiliIndex:     ParseString("MEILI_INDEX", ""),

		S3Endpoint:    ParseString("S3_ENDPOINT", ""),
		S3Region:      ParseString("S3_REGION", "us-east-1"),
		S3Bucket:      ParseString("S3_BUCKET", ""),
		S3AccessKey:   ParseString("S3_ACCESS_KEY", ""),
		S3SecretKey:   ParseString("S3_SECRET_KEY", ""),
		CDNBaseURL:    strings.TrimRight(ParseString("CDN_BASE_URL", ""), "/"),
		StoragePrefix: ParseString("STORAGE_PREFIX", "production"),

		BatchSize:    ParseInt("SYNC_BATCH_SIZE", 100),
		SyncInterval: time.Duration(ParseInt("SYNC_INTERVAL_MINUTES", 5)) * time.Minute,
		ResetOnStart: ParseBool("RESET_ON_START", false),

		MaxProperties: ParseInt("MAX_PROPERTIES", 0),
		MaxMembers:    ParseInt("MAX_MEMBERS", 0),
		MaxOffices:    ParseInt("MAX_OFFICES", 0),
		MaxOpenHouses: ParseInt("MAX_OPENHOUSES", 0),

		APIMinInterval:   ParseDuration("API_MIN_INTERVAL", 550*time.Millisecond),
		MediaMinInterval: ParseDuration("MEDIA_MIN_INTERVAL", 1500*time.Millisecond),
		HourlyRequestCap: ParseInt("HOURLY_REQUEST_CAP", 7000),

		OpsListen: ParseString("OPS_LISTEN", ":8090"),

		LogLevel: ParseString("LOG_LEVEL", "info"),
	}
}

// Validate checks the parts of the configuration without which the daemon
// cannot run. Any error here is fatal at startup.
func (c AppConfig) Validate() error {
	if c.ResoBaseURL == "" {
		return fmt.Errorf("RESO_BASE_URL is required")
	}
	u, err := url.Parse(c.ResoBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("RESO_BASE_URL %q is not a valid http(s) URL", c.ResoBaseURL)
	}
	if c.ResoToken == "" {
		return fmt.Errorf("RESO_TOKEN is required")
	}
	if c.OriginatingSystem == "" {
		return fmt.Errorf("RESO_ORIGINATING_SYSTEM is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MeiliHost == "" || c.MeiliIndex == "" {
		return fmt.Errorf("MEILI_HOST and MEILI_INDEX are required")
	}
	if c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
		return fmt.Errorf("S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}
	if c.CDNBaseURL == "" {
		return fmt.Errorf("CDN_BASE_URL is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.SyncInterval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL_MINUTES must be at least 1")
	}
	return nil
}
