package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Queue / worker settings
	UseMemoryQueue bool
	WorkerCount    int
	TriageQueueURL string

	// AWS / DynamoDB
	AWSRegion              string
	AWSAccessKeyID         string
	AWSSecretAccessKey     string
	AWSEndpointOverride    string
	TriageJobsTable        string
	PatientsTable          string
	DoctorsTable           string
	AppointmentsTable      string
	DoctorAvailabilityTable string
	NotificationsTable     string

	// LLM providers
	GeminiAPIKey   string
	GeminiModelID  string
	BedrockModelID string
	LLMMaxTokens   int
	LLMTemperature float64

	// Symptom-checker session settings
	SessionTimeout     time.Duration
	SessionMaxMessages int
	SessionStoreTTL    time.Duration

	// Doctor presence settings
	MaxPatientsPerDoctor int
	PresenceStaleAfter   time.Duration
	PresenceSweepSpec    string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Postgres consultation archive
	ArchiveDatabaseURL string

	// Auth
	JWTSecret string

	// Email notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	// Rate limiting for triage endpoints
	TriageRateLimit float64
	TriageRateBurst int

	CORSAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		TriageQueueURL: getEnv("TRIAGE_QUEUE_URL", ""),

		AWSRegion:               getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:     getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		TriageJobsTable:         getEnv("TRIAGE_JOBS_TABLE", "triage_jobs"),
		PatientsTable:           getEnv("PATIENTS_TABLE", "patients"),
		DoctorsTable:            getEnv("DOCTORS_TABLE", "doctors"),
		AppointmentsTable:       getEnv("APPOINTMENTS_TABLE", "appointments"),
		DoctorAvailabilityTable: getEnv("DOCTOR_AVAILABILITY_TABLE", "doctor_availability"),
		NotificationsTable:      getEnv("NOTIFICATIONS_TABLE", "notifications"),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.4),

		SessionTimeout:     getEnvAsDuration("SESSION_TIMEOUT", 30*time.Minute),
		SessionMaxMessages: getEnvAsInt("SESSION_MAX_MESSAGES", 50),
		SessionStoreTTL:    getEnvAsDuration("SESSION_STORE_TTL", 24*time.Hour),

		MaxPatientsPerDoctor: getEnvAsInt("MAX_PATIENTS_PER_DOCTOR", 5),
		PresenceStaleAfter:   getEnvAsDuration("PRESENCE_STALE_AFTER", 2*time.Minute),
		PresenceSweepSpec:    getEnv("PRESENCE_SWEEP_SPEC", "@every 1m"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ArchiveDatabaseURL: getEnv("ARCHIVE_DATABASE_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		EmailProvider:     getEnv("EMAIL_PROVIDER", "stub"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "TeleSeva"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		TriageRateLimit: getEnvAsFloat("TRIAGE_RATE_LIMIT", 2),
		TriageRateBurst: getEnvAsInt("TRIAGE_RATE_BURST", 10),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
