package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load(".env")
}

func Get(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetDefault(key, defaultVal string) string {
	if v := Get(key); v != "" {
		return v
	}
	return defaultVal
}

func GetBool(key, defaultVal string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		v = defaultVal
	}
	return v == "1" || v == "true" || v == "yes"
}

func GetInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(Get(key))
	if err != nil {
		return defaultVal
	}
	return n
}

func GetFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(Get(key), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// GetDuration accepts Go duration strings ("45s") or plain seconds ("45").
func GetDuration(key string, defaultVal time.Duration) time.Duration {
	v := Get(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

var (
	// SEC rejects or throttles requests without an identifying agent.
	UserAgent = GetDefault("SEC_USER_AGENT", "SecForm/0.1")
	FeedURL   = GetDefault("SECFORM_FEED_URL", "https://www.sec.gov/cgi-bin/browse-edgar")

	RequestTimeout    = GetDuration("SECFORM_TIMEOUT", 30*time.Second)
	RequestsPerSecond = GetFloat("SECFORM_RPS", 10)
	MaxRetries        = GetInt("SECFORM_RETRIES", 2)
	DetailWorkers     = GetInt("SECFORM_DETAIL_WORKERS", 4)

	SP500URL       = GetDefault("SECFORM_SP500_URL", "https://raw.githubusercontent.com/datasets/s-and-p-500-companies/master/data/constituents.csv")
	CachePath      = Get("SECFORM_CACHE_PATH")
	DiagnosticsDir = Get("SECFORM_DIAGNOSTICS_DIR")

	Debug        = GetBool("SECFORM_DEBUG", "false")
	TraceEnabled = GetBool("SECFORM_TRACE", "false")

	Port        = GetDefault("PORT", "8000")
	// Optional; when set, detail requests to the API require it.
	AdminAPIKey = Get("ADMIN_API_KEY")
)
