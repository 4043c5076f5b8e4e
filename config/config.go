// File: bloomify/config/config.go
package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the scheduler service.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Clinic-local clock (§6): every date/time string the core produces
	// or accepts is rendered in this IANA zone.
	ClinicTimezone string `mapstructure:"CLINIC_TIMEZONE"`

	// Redis configuration.
	RedisAddr               string `mapstructure:"REDIS_ADDR"`
	RedisPassword           string `mapstructure:"REDIS_PASSWORD"`
	RedisNotifCacheDB       int    `mapstructure:"REDIS_NOTIF_CACHE_DB"`
	RedisReminderQueueDB    int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`

	// Push-notification gateway (§6).
	PushGatewayBaseURL string `mapstructure:"PUSH_GATEWAY_BASE_URL"`
	FirebaseServiceAccountFile string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_FILE"`

	// WhatsApp/Meta gateway (§6).
	WhatsAppGatewayBaseURL string `mapstructure:"WHATSAPP_GATEWAY_BASE_URL"`
	WhatsAppAPIKey         string `mapstructure:"WHATSAPP_API_KEY"`

	// Passthrough env vars named in §6; not required for correctness.
	PatientAppURL string `mapstructure:"NEXT_PUBLIC_PATIENT_APP_URL"`
	BaseURL       string `mapstructure:"NEXT_PUBLIC_BASE_URL"`
	DebugWalkIn   bool   `mapstructure:"NEXT_PUBLIC_DEBUG_WALK_IN"`
}

var AppConfig Config

// LoadConfig reads config.yaml (if present) plus environment variables
// into AppConfig, following the teacher's viper wiring.
func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	viper.SetDefault("CLINIC_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_NOTIF_CACHE_DB", 0)
	viper.SetDefault("REDIS_REMINDER_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "scheduler")
	viper.SetDefault("NEXT_PUBLIC_DEBUG_WALK_IN", false)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
