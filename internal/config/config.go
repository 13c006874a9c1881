package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	PageOrigin  string

	SessionUserID string
	SessionRole   string
	SessionName   string
	SessionToken  string
	JWTSecret     string

	ReconnectPolicy      string
	ReconnectDelay       time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int
	RequireAuthAck       bool
	AuthTimeout          time.Duration

	StoreCapacity int
	EchoUpsert    bool

	HistoryURL         string
	RedisAddr          string
	RedisChannelPrefix string
	KafkaBrokers       []string
	KafkaTopic         string

	ObsHTTPAddr       string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MetricsEnabled    bool
	TracingEnabled    bool
	JaegerURL         string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// always win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "hms-realtime-client"),
		PageOrigin:  getEnv("PAGE_ORIGIN", "http://localhost:5000"),

		SessionUserID: getEnv("SESSION_USER_ID", ""),
		SessionRole:   getEnv("SESSION_ROLE", ""),
		SessionName:   getEnv("SESSION_NAME", ""),
		SessionToken:  getEnv("SESSION_TOKEN", ""),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),

		ReconnectPolicy:      getEnv("RECONNECT_POLICY", "constant"),
		ReconnectDelay:       getEnvDuration("RECONNECT_DELAY", 3*time.Second),
		ReconnectMaxDelay:    getEnvDuration("RECONNECT_MAX_DELAY", 30*time.Second),
		ReconnectMaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 0),
		RequireAuthAck:       getEnvBool("REQUIRE_AUTH_ACK", false),
		AuthTimeout:          getEnvDuration("AUTH_TIMEOUT", 5*time.Second),

		StoreCapacity: getEnvInt("STORE_CAPACITY", 0),
		EchoUpsert:    getEnvBool("ECHO_UPSERT", false),

		HistoryURL:         getEnv("HISTORY_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "hms:events:"),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "hms-client-events"),

		ObsHTTPAddr:       fixPort(getEnv("HTTP_ADDR", ":8095")),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		TracingEnabled:    getEnvBool("TRACING_ENABLED", false),
		JaegerURL:         getEnv("JAEGER_URL", "http://localhost:14268/api/traces"),
	}
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
