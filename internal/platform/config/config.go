package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Attendance policy itself
// (shift times, thresholds, geofence) is not configured here; it arrives per
// operation as an immutable snapshot from the settings source.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	Redis RedisConfig
	Kafka KafkaConfig

	// LocationTimeout bounds the hardware round-trip for a GPS fix.
	LocationTimeout time.Duration

	// SideStepTimeout bounds each best-effort step (reverse geocoding,
	// photo capture); failures there degrade the record, never the call.
	SideStepTimeout time.Duration

	// Timezone is the location used to normalize record days to midnight.
	Timezone string
}

// RedisConfig controls the optional distributed lock backend.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig controls the optional audit event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TIMECLOCK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	tz := os.Getenv("TIMECLOCK_TZ")
	if tz == "" {
		tz = "UTC"
	}

	kafkaTopic := os.Getenv("AUDIT_KAFKA_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "timeclock.attendance.audit"
	}

	var brokers []string
	if v := os.Getenv("AUDIT_KAFKA_BROKERS"); v != "" {
		brokers = splitAndTrim(v)
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: jwtSigningKey,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   kafkaTopic,
		},
		LocationTimeout: durationEnv("LOCATION_TIMEOUT", 15*time.Second),
		SideStepTimeout: durationEnv("SIDE_STEP_TIMEOUT", 5*time.Second),
		Timezone:        tz,
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitAndTrim(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
