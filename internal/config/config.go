package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	ListenAddress     string // Address the HTTP server binds to
	DataDir           string // Directory for the SQLite database and delivery logs
	StorageType       string // Storage type: "sqlite" or "postgres"
	DBHost            string // PostgreSQL host
	DBUser            string // PostgreSQL user
	DBPassword        string // PostgreSQL password
	DBName            string // PostgreSQL database name
	DBPort            int    // PostgreSQL port
	DBSSLMode         string // PostgreSQL SSL mode
	SMTPHost          string // Outbound SMTP host
	SMTPPort          int    // Outbound SMTP port
	SMTPUser          string // SMTP username
	SMTPPassword      string // SMTP password
	MailFrom          string // From address on delivery
	MailTo            string // Destination mailbox
	MailRetries       int    // Additional primary transport attempts after the first
	MaxMessageLength  int    // Server-side cap on message length
	RateLimitMax      int    // Max submissions per window per IP hash
	RateLimitWindow   int    // Fixed window length in seconds
	RateFailClosed    bool   // Reject submissions when the rate-limit store errors
	IPHashSalt        string // HMAC salt for rate-limit keys; must be set in production
	SessionTTLSeconds int    // Challenge session lifetime
	LogRetentionDays  int    // Delivery log files older than this are deleted
	AdminAPIKey       string // API key for the /api/v1/limits management surface; empty disables it
}

const (
	defaultListenAddress     = ":8085"
	defaultDataDir           = "./data"
	defaultStorageType       = "sqlite"
	defaultDBHost            = "localhost"
	defaultDBUser            = "contactgate"
	defaultDBPassword        = "password"
	defaultDBName            = "contactgate"
	defaultDBPort            = 5432
	defaultDBSSLMode         = "disable"
	defaultSMTPPort          = 465
	defaultMailRetries       = 1
	defaultMaxMessageLength  = 12000
	defaultRateLimitMax      = 5
	defaultRateLimitWindow   = 3600
	defaultSessionTTLSeconds = 3600
	defaultLogRetentionDays  = 7
)

// LoadConfig loads the service configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddress:     getEnv("CONTACTGATE_LISTEN_ADDRESS", defaultListenAddress),
		DataDir:           getEnv("CONTACTGATE_DATA_DIR", defaultDataDir),
		StorageType:       getEnv("CONTACTGATE_STORAGE_TYPE", defaultStorageType),
		DBHost:            getEnv("CONTACTGATE_DB_HOST", defaultDBHost),
		DBUser:            getEnv("CONTACTGATE_DB_USER", defaultDBUser),
		DBPassword:        getEnv("CONTACTGATE_DB_PASSWORD", defaultDBPassword),
		DBName:            getEnv("CONTACTGATE_DB_NAME", defaultDBName),
		DBPort:            getEnvAsInt("CONTACTGATE_DB_PORT", defaultDBPort),
		DBSSLMode:         getEnv("CONTACTGATE_DB_SSLMODE", defaultDBSSLMode),
		SMTPHost:          getEnv("CONTACTGATE_SMTP_HOST", ""),
		SMTPPort:          getEnvAsInt("CONTACTGATE_SMTP_PORT", defaultSMTPPort),
		SMTPUser:          getEnv("CONTACTGATE_SMTP_USER", ""),
		SMTPPassword:      getEnv("CONTACTGATE_SMTP_PASSWORD", ""),
		MailFrom:          getEnv("CONTACTGATE_MAIL_FROM", ""),
		MailTo:            getEnv("CONTACTGATE_MAIL_TO", ""),
		MailRetries:       getEnvAsInt("CONTACTGATE_MAIL_RETRIES", defaultMailRetries),
		MaxMessageLength:  getEnvAsInt("CONTACTGATE_MAX_MESSAGE_LENGTH", defaultMaxMessageLength),
		RateLimitMax:      getEnvAsInt("CONTACTGATE_RATE_MAX", defaultRateLimitMax),
		RateLimitWindow:   getEnvAsInt("CONTACTGATE_RATE_WINDOW_SECONDS", defaultRateLimitWindow),
		RateFailClosed:    getEnvAsBool("CONTACTGATE_RATE_FAIL_CLOSED", false),
		IPHashSalt:        getEnv("CONTACTGATE_IP_HASH_SALT", ""),
		SessionTTLSeconds: getEnvAsInt("CONTACTGATE_SESSION_TTL_SECONDS", defaultSessionTTLSeconds),
		LogRetentionDays:  getEnvAsInt("CONTACTGATE_LOG_RETENTION_DAYS", defaultLogRetentionDays),
		AdminAPIKey:       getEnv("CONTACTGATE_ADMIN_API_KEY", ""),
	}
	return cfg, nil
}

// MailerConfigured reports whether the full SMTP credential set is present.
// The health endpoint exposes the individual booleans; the gate refuses
// submissions when this is false.
func (c *Config) MailerConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPassword != "" &&
		c.MailFrom != "" && c.MailTo != "" && c.IPHashSalt != ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s (%s), using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s (%s), using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
