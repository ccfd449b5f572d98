package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/yourusername/pi-pioneer-hub/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port              string
	DatabaseURL       string
	RedisURL          string
	PiAPIBaseURL      string
	PiAPIKey          string
	AppWalletSecret   string
	HorizonURL        string
	NetworkPassphrase string
	JWTSecret         string
}

func LoadConfig() (*Config, error) {
	godotenv.Load()

	return &Config{
		Port:              os.Getenv("PORT"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		PiAPIBaseURL:      getEnvOrDefault("PI_API_BASE_URL", "https://api.minepi.com/v2"),
		PiAPIKey:          os.Getenv("PI_API_KEY"),
		AppWalletSecret:   os.Getenv("APP_WALLET_SECRET"),
		HorizonURL:        getEnvOrDefault("PI_HORIZON_URL", "https://api.testnet.minepi.com"),
		NetworkPassphrase: getEnvOrDefault("NETWORK_PASSPHRASE", "Pi Testnet"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for every owned table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Payment{},
		&models.VIPSubscription{},
		&models.Referral{},
		&models.ReferralClaim{},
		&models.ReputationScore{},
		&models.AppStat{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// InitRedis connects to the key-value store holding the raw record log and
// the legacy VIP markers.
func InitRedis(cfg *Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
