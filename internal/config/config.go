package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	DynamoTables DynamoTables

	S3BucketName string

	// SNS platform application whose endpoints device tokens resolve to.
	SNSRegion         string
	SNSPlatformAppARN string

	JWTPublicKeyPath string

	// Dispatcher & retention tuning.
	DispatchPollInterval time.Duration
	DispatchTimeout      time.Duration
	RetentionCron        string
	RetentionWindow      time.Duration

	// Typing presence self-expiry.
	TypingTTL time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Threads      string
	Messages     string
	ReadStates   string
	TypingStates string
	Triggers     string
	Devices      string
	Issues       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		DynamoTables: DynamoTables{
			Threads:      getEnv("DYNAMO_TABLE_THREADS", "threads"),
			Messages:     getEnv("DYNAMO_TABLE_MESSAGES", "messages"),
			ReadStates:   getEnv("DYNAMO_TABLE_READ_STATES", "read_states"),
			TypingStates: getEnv("DYNAMO_TABLE_TYPING_STATES", "typing_states"),
			Triggers:     getEnv("DYNAMO_TABLE_TRIGGERS", "notification_triggers"),
			Devices:      getEnv("DYNAMO_TABLE_DEVICES", "devices"),
			Issues:       getEnv("DYNAMO_TABLE_ISSUES", "issues"),
		},

		S3BucketName: getEnv("S3_BUCKET_NAME", "tablemend-attachments"),

		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		SNSPlatformAppARN: getEnv("SNS_PLATFORM_APP_ARN", ""),

		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),

		DispatchPollInterval: getEnvSeconds("DISPATCH_POLL_INTERVAL_SECONDS", 30),
		DispatchTimeout:      getEnvSeconds("DISPATCH_TIMEOUT_SECONDS", 60),
		RetentionCron:        getEnv("RETENTION_CRON", "0 3 * * *"),
		RetentionWindow:      time.Duration(getEnvInt("RETENTION_WINDOW_DAYS", 7)) * 24 * time.Hour,

		TypingTTL: getEnvSeconds("TYPING_TTL_SECONDS", 6),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
