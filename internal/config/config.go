package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Geo      GeoConfig
	Session  SessionConfig
	Admin    AdminConfig
	Risk     RiskConfig

	// Workers for fire-and-forget visit logging
	VisitWorkers int
}

type ServerConfig struct {
	Host           string
	Port           int
	Production     bool
	TrustedProxies []string
}

type DatabaseConfig struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration

	RetentionDays   int
	CleanupTime     string // HH:MM
	CleanupInterval time.Duration
	VacuumEnabled   bool
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type GeoConfig struct {
	Providers      []string
	Timeout        time.Duration
	IPAPIURL       string
	IPInfoToken    string
	IPifyURL       string
	CityDBPath     string
	ASNDBPath      string
	WatchDatabases bool
	STUNServer     string
	LeakTimeout    time.Duration
}

type SessionConfig struct {
	CookieName string
	TTL        time.Duration
}

type AdminConfig struct {
	User     string
	Password string
}

// RiskConfig overrides the scoring constants. Zero values keep the defaults.
type RiskConfig struct {
	WebRTCWeight      int
	HeaderWeight      int
	LanguageWeight    int
	APIVPNWeight      int
	ISPWeight         int
	TimingWeight      int
	TimezoneWeight    int
	VPNThreshold      int
	TimezoneTolerance time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Production:     getEnvAsBool("SERVER_PRODUCTION", false),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			Path:            getEnv("DB_PATH", "keygate.db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLife:     getEnvAsDuration("DB_CONN_MAX_LIFE", time.Hour),
			RetentionDays:   getEnvAsInt("DB_RETENTION_DAYS", 90),
			CleanupTime:     getEnv("DB_CLEANUP_TIME", "03:00"),
			CleanupInterval: getEnvAsDuration("DB_CLEANUP_INTERVAL", time.Hour),
			VacuumEnabled:   getEnvAsBool("DB_VACUUM_ENABLED", false),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
		Geo: GeoConfig{
			Providers:      getEnvAsList("GEO_PROVIDERS", []string{"ipapi", "ipinfo", "mmdb", "ipify"}),
			Timeout:        getEnvAsDuration("GEO_TIMEOUT", 3*time.Second),
			IPAPIURL:       getEnv("IPAPI_URL", "http://ip-api.com/json/"),
			IPInfoToken:    getEnv("IPINFO_TOKEN", ""),
			IPifyURL:       getEnv("IPIFY_URL", "https://api.ipify.org?format=text"),
			CityDBPath:     getEnv("GEOIP_CITY_PATH", ""),
			ASNDBPath:      getEnv("GEOIP_ASN_PATH", ""),
			WatchDatabases: getEnvAsBool("GEOIP_WATCH", true),
			STUNServer:     getEnv("STUN_SERVER", "stun.l.google.com:19302"),
			LeakTimeout:    getEnvAsDuration("WEBRTC_TIMEOUT", time.Second),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE", "kg_session"),
			TTL:        getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
		Admin: AdminConfig{
			User:     getEnv("ADMIN_USER", "admin"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Risk: RiskConfig{
			WebRTCWeight:      getEnvAsInt("RISK_WEBRTC_WEIGHT", 0),
			HeaderWeight:      getEnvAsInt("RISK_HEADER_WEIGHT", 0),
			LanguageWeight:    getEnvAsInt("RISK_LANGUAGE_WEIGHT", 0),
			APIVPNWeight:      getEnvAsInt("RISK_API_VPN_WEIGHT", 0),
			ISPWeight:         getEnvAsInt("RISK_ISP_WEIGHT", 0),
			TimingWeight:      getEnvAsInt("RISK_TIMING_WEIGHT", 0),
			TimezoneWeight:    getEnvAsInt("RISK_TIMEZONE_WEIGHT", 0),
			VPNThreshold:      getEnvAsInt("RISK_VPN_THRESHOLD", 0),
			TimezoneTolerance: getEnvAsDuration("RISK_TIMEZONE_TOLERANCE", 0),
		},
		VisitWorkers: getEnvAsInt("VISIT_WORKERS", 16),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if _, err := time.Parse("15:04", c.Database.CleanupTime); err != nil {
		return fmt.Errorf("invalid DB_CLEANUP_TIME %q: %w", c.Database.CleanupTime, err)
	}
	if c.Geo.Timeout <= 0 {
		return fmt.Errorf("GEO_TIMEOUT must be positive")
	}
	if c.VisitWorkers <= 0 {
		c.VisitWorkers = 1
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// Bare numbers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
