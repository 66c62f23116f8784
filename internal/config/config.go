package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL and the VAPID key
// pair are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Web Push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushTimeout     time.Duration
	PushTTL         int
	DeliveryRate    float64 // pushes per second across all entries

	// Queue processor
	PollInterval  time.Duration
	ClaimBatch    int
	RetryBackoff  time.Duration
	FailedRowTTL  time.Duration // preventive sweep threshold for failed rows
	JanitorPeriod time.Duration // how often terminal rows are swept
	RetentionDays int           // terminal rows older than this are deleted

	// Subscription eviction
	SweepInterval    time.Duration
	SweepRate        float64 // users processed per second during a full sweep
	InactiveDays     int     // inactive subscriptions older than this are deleted
	AgentWaitTimeout time.Duration

	// Observability
	MetricsSampleInterval time.Duration
}

func Load() (*Config, error) {
	// A local .env is a convenience for development; absence is not an error.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	pub := os.Getenv("VAPID_PUBLIC_KEY")
	priv := os.Getenv("VAPID_PRIVATE_KEY")
	if pub == "" || priv == "" {
		return nil, fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:support@aqura.app"),
		PushTimeout:     getDuration("PUSH_TIMEOUT", 10*time.Second),
		PushTTL:         getInt("PUSH_TTL_SECONDS", 24*60*60),
		DeliveryRate:    getFloat("DELIVERY_RATE", 25),

		PollInterval:  getDuration("POLL_INTERVAL", 30*time.Second),
		ClaimBatch:    getInt("CLAIM_BATCH", 10),
		RetryBackoff:  getDuration("RETRY_BACKOFF", 10*time.Second),
		FailedRowTTL:  getDuration("FAILED_ROW_TTL", 30*time.Minute),
		JanitorPeriod: getDuration("JANITOR_PERIOD", 24*time.Hour),
		RetentionDays: getInt("RETENTION_DAYS", 7),

		SweepInterval:    getDuration("SWEEP_INTERVAL", 6*time.Hour),
		SweepRate:        getFloat("SWEEP_RATE", 10),
		InactiveDays:     getInt("INACTIVE_DAYS", 30),
		AgentWaitTimeout: getDuration("AGENT_WAIT_TIMEOUT", 3*time.Second),

		MetricsSampleInterval: getDuration("METRICS_SAMPLE_INTERVAL", 15*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
