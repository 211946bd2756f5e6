package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Visiting strategies.
const (
	StrategyTab   = "tab"
	StrategyClick = "click"
)

// Browser engines.
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SearchURL   string `validate:"omitempty,url"`
	SessionName string
	TargetCount int    `validate:"gte=1"`
	QueueFile   string

	Headless      bool
	BrowserEngine string `validate:"oneof=chromedp rod"`
	VisitStrategy string `validate:"oneof=tab click"`
	ChromeBin     string

	MaxPages              int `validate:"gte=1,lte=20"`
	CheckpointInterval    int `validate:"gte=1"`
	CheckpointKeep        int `validate:"gte=1"`
	FailureThresholdClick int `validate:"gte=1"`
	FailureThresholdTab   int `validate:"gte=1"`
	MaxRecoveryAttempts   int `validate:"gte=1"`

	ResultWait   time.Duration `validate:"gt=0"`
	NavTimeout   time.Duration `validate:"gt=0"`
	ScrollSteps  int           `validate:"gte=0"`
	ScrollStepPx int           `validate:"gte=0"`

	ListingDelayMin time.Duration
	ListingDelayMax time.Duration `validate:"gtefield=ListingDelayMin"`
	PageDelayMin    time.Duration
	PageDelayMax    time.Duration `validate:"gtefield=PageDelayMin"`
	SessionDelay    time.Duration

	OutputDir     string   `validate:"required"`
	OutputFormats []string `validate:"min=1,dive,oneof=csv json"`

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ElasticEnabled  bool
	ElasticAddress  string `validate:"omitempty,url"`
	ElasticUsername string
	ElasticPassword string
	ElasticIndex    string
	ElasticInsecure bool

	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		SearchURL:   getEnv("SEARCH_URL", ""),
		SessionName: getEnv("SESSION_NAME", "search"),
		TargetCount: getEnvInt("TARGET_COUNT", 100),
		QueueFile:   getEnv("SEARCH_QUEUE_FILE", ""),

		Headless:      getEnvBool("HEADLESS", false),
		BrowserEngine: strings.ToLower(getEnv("BROWSER_ENGINE", EngineChromedp)),
		VisitStrategy: strings.ToLower(getEnv("VISIT_STRATEGY", StrategyTab)),
		ChromeBin:     getEnv("CHROME_BIN", ""),

		MaxPages:              getEnvInt("MAX_PAGES", 20),
		CheckpointInterval:    getEnvInt("CHECKPOINT_INTERVAL", 50),
		CheckpointKeep:        getEnvInt("CHECKPOINT_KEEP", 2),
		FailureThresholdClick: getEnvInt("FAILURE_THRESHOLD_CLICK", 5),
		FailureThresholdTab:   getEnvInt("FAILURE_THRESHOLD_TAB", 15),
		MaxRecoveryAttempts:   getEnvInt("MAX_RECOVERY_ATTEMPTS", 3),

		ResultWait:   getEnvDuration("RESULT_WAIT_SEC", 15*time.Second, time.Second),
		NavTimeout:   getEnvDuration("NAV_TIMEOUT_SEC", 45*time.Second, time.Second),
		ScrollSteps:  getEnvInt("SCROLL_STEPS", 5),
		ScrollStepPx: getEnvInt("SCROLL_STEP_PX", 800),

		ListingDelayMin: getEnvDuration("LISTING_DELAY_MIN_MS", 2*time.Second, time.Millisecond),
		ListingDelayMax: getEnvDuration("LISTING_DELAY_MAX_MS", 4*time.Second, time.Millisecond),
		PageDelayMin:    getEnvDuration("PAGE_DELAY_MIN_MS", 4*time.Second, time.Millisecond),
		PageDelayMax:    getEnvDuration("PAGE_DELAY_MAX_MS", 7*time.Second, time.Millisecond),
		SessionDelay:    getEnvDuration("SESSION_DELAY_SEC", 10*time.Second, time.Second),

		OutputDir:     getEnv("OUTPUT_DIR", "./output"),
		OutputFormats: getEnvList("OUTPUT_FORMATS", []string{"csv", "json"}),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "homes_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ElasticEnabled:  getEnvBool("ELASTIC_ENABLED", false),
		ElasticAddress:  getEnv("ELASTIC_ADDRESS", "http://localhost:9200"),
		ElasticUsername: getEnv("ELASTIC_USERNAME", ""),
		ElasticPassword: getEnv("ELASTIC_PASSWORD", ""),
		ElasticIndex:    getEnv("ELASTIC_INDEX", "listings"),
		ElasticInsecure: getEnvBool("ELASTIC_INSECURE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.SearchURL == "" && c.QueueFile == "" {
		return fmt.Errorf("config: one of SEARCH_URL or SEARCH_QUEUE_FILE is required")
	}
	if c.ElasticEnabled && c.ElasticAddress == "" {
		return fmt.Errorf("config: ELASTIC_ADDRESS is required when ELASTIC_ENABLED is set")
	}
	return nil
}

// FailureThreshold returns the consecutive-failure limit for the configured
// visiting strategy. Tab visiting is isolated, so it tolerates more.
func (c *Config) FailureThreshold() int {
	if c.VisitStrategy == StrategyClick {
		return c.FailureThresholdClick
	}
	return c.FailureThresholdTab
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, fallback, unit time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return time.Duration(n) * unit
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
