package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	ServerPort      int
	ShutdownTimeout time.Duration

	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	OTPTTL           time.Duration
	OTPMaxAttempts   int
	OTPRatePerMinute int
	OTPRateBurst     int
	OTPEchoCode      bool

	IntakeJWTSecret []byte
	IntakeJWTIssuer string

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	AIServiceURL string
	AILabels     []string
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	env := EnvDefault("APP_ENV", "development")
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "civicdesk"),
		Env:         env,
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort:      EnvIntDefault("SERVER_PORT", 8080),
		ShutdownTimeout: EnvDurationDefault("SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: EnvIntDefault("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns: EnvIntDefault("DB_MAX_IDLE_CONNS", 10),

		AccessTokenTTL:  EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: EnvDurationDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		OTPTTL:           EnvDurationDefault("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts:   EnvIntDefault("OTP_MAX_ATTEMPTS", 5),
		OTPRatePerMinute: EnvIntDefault("OTP_RATE_PER_MINUTE", 10),
		OTPRateBurst:     EnvIntDefault("OTP_RATE_BURST", 5),
		OTPEchoCode:      EnvBoolDefault("OTP_ECHO_CODE", env != "production"),

		IntakeJWTSecret: []byte(os.Getenv("INTAKE_JWT_SECRET")),
		IntakeJWTIssuer: EnvDefault("INTAKE_JWT_ISSUER", ""),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "complaint_events"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "complaints"),

		AIServiceURL: os.Getenv("AI_SERVICE_URL"),
		AILabels:     CSVDefault(os.Getenv("AI_LABELS"), []string{"pothole", "garbage", "streetlight", "water_supply", "sewage", "other"}),
	}
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func (c Config) ListenAddr() string { return ":" + strconv.Itoa(c.ServerPort) }

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func CSVDefault(v string, def []string) []string {
	if out := CSV(v); len(out) > 0 {
		return out
	}
	return def
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
