package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PollingStationNames are the fixed station names every center carries.
// Station index i (1-based) in a submission maps to PollingStationNames[i-1].
var PollingStationNames = []string{"Bureau de vote 1", "Bureau de vote 2"}

// Config holds every runtime setting, read once at startup.
type Config struct {
	HTTPAddr    string
	CORSOrigins []string

	DB DBConfig

	LogFile   string
	LogLevel  string
	LogStdout bool

	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RedisURL             string

	FeedInterval    time.Duration
	FeedRecentLimit int
	FeedNotify      bool

	TableRowCap int
	AgentRowCap int

	CandidateALabel    string
	CandidateBLabel    string
	StrictLocationPath bool
}

// DBConfig captures the PostgreSQL connection settings.
type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	TimeZone     string
	MaxOpenConns int
	MaxIdleConns int
	SlowQuery    time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", nil),

		DB: DBConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "password"),
			Name:         getEnv("DB_NAME", "tallyboard"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			TimeZone:     getEnv("DB_TIMEZONE", "UTC"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			SlowQuery:    getEnvAsDuration("DB_SLOW_QUERY", 500*time.Millisecond),
		},

		LogFile:   getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogStdout: getEnvAsBool("LOG_STDOUT", false),

		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		RedisURL:             getEnv("REDIS_URL", ""),

		FeedInterval:    getEnvAsDuration("FEED_INTERVAL", 2*time.Second),
		FeedRecentLimit: getEnvAsInt("FEED_RECENT_LIMIT", 50),
		FeedNotify:      getEnvAsBool("FEED_NOTIFY", false),

		TableRowCap: getEnvAsInt("TABLE_ROW_CAP", 500),
		AgentRowCap: getEnvAsInt("AGENT_ROW_CAP", 1000),

		CandidateALabel:    getEnv("CANDIDATE_A_LABEL", "WADAGNI - TALATA"),
		CandidateBLabel:    getEnv("CANDIDATE_B_LABEL", "HOUNKPE - HOUNWANOU"),
		StrictLocationPath: getEnvAsBool("STRICT_LOCATION_PATH", false),
	}
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("2s") or plain milliseconds ("2000").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
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
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
