package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/workhive/service-booking/internal/pkg/database"
)

// JWTConfig holds token validation settings.
type JWTConfig struct {
	Secret string
}

// KafkaConfig holds broker and consumer-group settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// BookingPolicy holds the commercial and temporal policy knobs of the
// booking core.
type BookingPolicy struct {
	// MarkupPercentage is the platform fee added on top of host earnings.
	MarkupPercentage int
	// PendingTTL is how long an unpaid pending booking holds its slot.
	PendingTTL time.Duration
	// RescheduleCutoff is the minimum lead time before start for a
	// reschedule, mirroring the partial-refund cancellation cutoff.
	RescheduleCutoff time.Duration
	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval time.Duration
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port     string
	AppEnv   string
	DBConfig database.PostgresConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	Policy   BookingPolicy
}

// Load reads configuration from BOOKING_-prefixed environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVICE_PORT", ":8083")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "booking")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "workhive.")
	v.SetDefault("MARKUP_PERCENTAGE", 15)
	v.SetDefault("PENDING_TTL_MINUTES", 15)
	v.SetDefault("RESCHEDULE_CUTOFF_HOURS", 2)
	v.SetDefault("SWEEP_INTERVAL_MINUTES", 1)

	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("BOOKING_JWT_SECRET is required")
	}

	markup := v.GetInt("MARKUP_PERCENTAGE")
	if markup < 0 || markup > 100 {
		return nil, fmt.Errorf("markup percentage must be within 0..100, got %d", markup)
	}

	return &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{Secret: secret},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		Policy: BookingPolicy{
			MarkupPercentage: markup,
			PendingTTL:       time.Duration(v.GetInt("PENDING_TTL_MINUTES")) * time.Minute,
			RescheduleCutoff: time.Duration(v.GetInt("RESCHEDULE_CUTOFF_HOURS")) * time.Hour,
			SweepInterval:    time.Duration(v.GetInt("SWEEP_INTERVAL_MINUTES")) * time.Minute,
		},
	}, nil
}
