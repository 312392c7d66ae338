package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Restaurant describes one venue and its opening window ("HH:MM").
type Restaurant struct {
	Name  string
	Open  string
	Close string
}

// Config holds all server configuration
type Config struct {
	Port           int
	AllowedOrigins []string

	// Generation engine
	GeminiAPIKey string
	GeminiModel  string

	// Catalog (menu) service
	CatalogURL       string
	CatalogTimeout   time.Duration
	CatalogValidates bool // delegate field validation to the catalog service

	// Session store
	RedisURL       string
	RedisPassword  string
	MaxSessions    int
	SessionTimeout time.Duration

	// Order flow
	OrdersPath     string
	Buildings      []string
	RFIDDigits     int
	PhoneMinDigits int
	PhoneMaxDigits int
	Restaurants    []Restaurant
}

// Campus delivery buildings. Overridable via BUILDINGS.
var defaultBuildings = []string{
	"A1A", "A1B", "A1C", "A2A", "A2B", "A2C",
	"A3", "A4", "A5A", "A5B", "A5C", "A6A", "A6B", "A6C",
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:           8080,
		AllowedOrigins: []string{"*"},
		GeminiModel:    "models/gemini-2.0-flash",
		CatalogURL:     "http://localhost:9000",
		CatalogTimeout: 2 * time.Second,
		RedisURL:       "localhost:6379",
		MaxSessions:    100,
		SessionTimeout: 30 * time.Minute,
		OrdersPath:     "orders.txt",
		Buildings:      defaultBuildings,
		RFIDDigits:     6,
		PhoneMinDigits: 9,
		PhoneMaxDigits: 15,
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.GeminiModel = model
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if url := os.Getenv("CATALOG_URL"); url != "" {
		config.CatalogURL = strings.TrimRight(url, "/")
	}

	// CATALOG_TIMEOUT is in seconds
	if timeout := os.Getenv("CATALOG_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid CATALOG_TIMEOUT: %w", err)
		}
		config.CatalogTimeout = time.Duration(t) * time.Second
	}

	if v := os.Getenv("CATALOG_VALIDATES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CATALOG_VALIDATES: %w", err)
		}
		config.CatalogValidates = b
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// SESSION_TIMEOUT is in minutes
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	if path := os.Getenv("ORDERS_PATH"); path != "" {
		config.OrdersPath = path
	}

	if buildings := os.Getenv("BUILDINGS"); buildings != "" {
		config.Buildings = splitAndTrim(buildings)
	}

	if digits := os.Getenv("RFID_DIGITS"); digits != "" {
		d, err := strconv.Atoi(digits)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid RFID_DIGITS: %s", digits)
		}
		config.RFIDDigits = d
	}

	if minDigits := os.Getenv("PHONE_MIN_DIGITS"); minDigits != "" {
		d, err := strconv.Atoi(minDigits)
		if err != nil {
			return nil, fmt.Errorf("invalid PHONE_MIN_DIGITS: %w", err)
		}
		config.PhoneMinDigits = d
	}

	if maxDigits := os.Getenv("PHONE_MAX_DIGITS"); maxDigits != "" {
		d, err := strconv.Atoi(maxDigits)
		if err != nil {
			return nil, fmt.Errorf("invalid PHONE_MAX_DIGITS: %w", err)
		}
		config.PhoneMaxDigits = d
	}
	if config.PhoneMinDigits > config.PhoneMaxDigits {
		return nil, fmt.Errorf("PHONE_MIN_DIGITS (%d) exceeds PHONE_MAX_DIGITS (%d)",
			config.PhoneMinDigits, config.PhoneMaxDigits)
	}

	// OPENING_HOURS: "Name=HH:MM-HH:MM;Name2=HH:MM-HH:MM"
	if hours := os.Getenv("OPENING_HOURS"); hours != "" {
		restaurants, err := parseOpeningHours(hours)
		if err != nil {
			return nil, err
		}
		config.Restaurants = restaurants
	}

	return config, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func parseOpeningHours(s string) ([]Restaurant, error) {
	var restaurants []Restaurant
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, window, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid OPENING_HOURS entry: %q", entry)
		}
		open, close, ok := strings.Cut(window, "-")
		if !ok {
			return nil, fmt.Errorf("invalid OPENING_HOURS window: %q", window)
		}
		for _, t := range []string{open, close} {
			if _, err := time.Parse("15:04", t); err != nil {
				return nil, fmt.Errorf("invalid OPENING_HOURS time %q: %w", t, err)
			}
		}
		restaurants = append(restaurants, Restaurant{
			Name:  strings.TrimSpace(name),
			Open:  open,
			Close: close,
		})
	}
	return restaurants, nil
}

// OpenNow reports the restaurants whose opening window contains t.
func (c *Config) OpenNow(t time.Time) []Restaurant {
	hhmm := t.Format("15:04")
	var open []Restaurant
	for _, r := range c.Restaurants {
		if r.Open <= hhmm && hhmm <= r.Close {
			open = append(open, r)
		}
	}
	return open
}
