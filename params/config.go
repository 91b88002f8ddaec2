package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	Addr    string
	LogFile string
}

type Engine struct {
	// ExecutionDelay simulates broker processing latency between an order
	// being placed and its execution.
	ExecutionDelay time.Duration
}

type Quotes struct {
	// AlphaVantageKey authenticates against the real-market quote provider.
	// Empty key disables real-price seeding; the simulator runs standalone.
	AlphaVantageKey string
	CacheTTL        time.Duration
	// StreamInterval paces the WebSocket quote broadcast loop.
	StreamInterval time.Duration
	// RecalibrateInterval paces the occasional re-anchoring of simulated
	// prices against the real-market reference.
	RecalibrateInterval time.Duration
}

type Config struct {
	Server Server
	Engine Engine
	Quotes Quotes
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:    ":8080",
			LogFile: "data/server.log",
		},
		Engine: Engine{
			ExecutionDelay: 100 * time.Millisecond,
		},
		Quotes: Quotes{
			CacheTTL:            5 * time.Minute,
			StreamInterval:      1 * time.Second,
			RecalibrateInterval: 5 * time.Minute,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Server.Addr = getEnv("API_ADDR", cfg.Server.Addr)
	cfg.Server.LogFile = getEnv("LOG_FILE", cfg.Server.LogFile)
	cfg.Quotes.AlphaVantageKey = os.Getenv("ALPHAVANTAGE_API_KEY")

	if ms := os.Getenv("EXECUTION_DELAY_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Engine.ExecutionDelay = time.Duration(v) * time.Millisecond
		}
	}
	if ms := os.Getenv("QUOTE_CACHE_TTL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Quotes.CacheTTL = time.Duration(v) * time.Millisecond
		}
	}
	if ms := os.Getenv("QUOTE_STREAM_INTERVAL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Quotes.StreamInterval = time.Duration(v) * time.Millisecond
		}
	}
	if ms := os.Getenv("RECALIBRATE_INTERVAL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Quotes.RecalibrateInterval = time.Duration(v) * time.Millisecond
		}
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
