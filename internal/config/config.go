package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	PayPal      PayPalConfig
	MTNMomo     MTNMomoConfig
	OrangeMoney OrangeMoneyConfig
	Checkout    CheckoutConfig
	Admin       AdminConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig is optional; an empty Addr disables the provider token cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string // sandbox | live
	Currency     string
	BaseURL      string // overrides the URL derived from Mode
}

type MTNMomoConfig struct {
	SubscriptionKey   string
	APIUser           string
	APIKey            string
	Environment       string // sandbox | production
	TargetEnvironment string
	Currency          string
	BaseURL           string
}

type OrangeMoneyConfig struct {
	ClientID     string
	ClientSecret string
	MerchantKey  string
	Environment  string
	Currency     string
	ReturnURL    string
	CancelURL    string
	NotifURL     string
	BaseURL      string
}

type CheckoutConfig struct {
	MaxCartItems int
	// CFAPerEUR converts local totals (XAF) into the PayPal currency
	CFAPerEUR       decimal.Decimal
	PendingOrderTTL time.Duration
}

type AdminConfig struct {
	// APIKeyHash is a bcrypt hash; empty disables the admin API
	APIKeyHash string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	redisDB, err := strconv.Atoi(getEnvOrViper("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB must be an integer: %w", err)
	}

	maxCartItems, err := strconv.Atoi(getEnvOrViper("CHECKOUT_MAX_CART_ITEMS", "100"))
	if err != nil || maxCartItems < 1 {
		return nil, fmt.Errorf("CHECKOUT_MAX_CART_ITEMS must be a positive integer")
	}

	rate, err := decimal.NewFromString(getEnvOrViper("CFA_EUR_RATE", "655.957"))
	if err != nil || !rate.IsPositive() {
		return nil, fmt.Errorf("CFA_EUR_RATE must be a positive decimal")
	}

	ttl, err := time.ParseDuration(getEnvOrViper("PENDING_ORDER_TTL", "2h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("PENDING_ORDER_TTL must be a positive duration")
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "checkout"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrViper("REDIS_ADDR", ""),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		PayPal: PayPalConfig{
			ClientID:     getEnvOrViper("PAYPAL_CLIENT_ID", ""),
			ClientSecret: getEnvOrViper("PAYPAL_CLIENT_SECRET", ""),
			Mode:         getEnvOrViper("PAYPAL_MODE", "sandbox"),
			Currency:     getEnvOrViper("PAYPAL_CURRENCY", "EUR"),
			BaseURL:      getEnvOrViper("PAYPAL_BASE_URL", ""),
		},
		MTNMomo: MTNMomoConfig{
			SubscriptionKey:   getEnvOrViper("MTN_MOMO_SUBSCRIPTION_KEY", ""),
			APIUser:           getEnvOrViper("MTN_MOMO_API_USER", ""),
			APIKey:            getEnvOrViper("MTN_MOMO_API_KEY", ""),
			Environment:       getEnvOrViper("MTN_MOMO_ENVIRONMENT", "sandbox"),
			TargetEnvironment: getEnvOrViper("MTN_MOMO_TARGET_ENVIRONMENT", "mtncameroon"),
			Currency:          getEnvOrViper("MTN_MOMO_CURRENCY", "XAF"),
			BaseURL:           getEnvOrViper("MTN_MOMO_BASE_URL", ""),
		},
		OrangeMoney: OrangeMoneyConfig{
			ClientID:     getEnvOrViper("ORANGE_MONEY_CLIENT_ID", ""),
			ClientSecret: getEnvOrViper("ORANGE_MONEY_CLIENT_SECRET", ""),
			MerchantKey:  getEnvOrViper("ORANGE_MONEY_MERCHANT_KEY", ""),
			Environment:  getEnvOrViper("ORANGE_MONEY_ENVIRONMENT", "sandbox"),
			Currency:     getEnvOrViper("ORANGE_MONEY_CURRENCY", "XAF"),
			ReturnURL:    getEnvOrViper("ORANGE_MONEY_RETURN_URL", ""),
			CancelURL:    getEnvOrViper("ORANGE_MONEY_CANCEL_URL", ""),
			NotifURL:     getEnvOrViper("ORANGE_MONEY_NOTIF_URL", ""),
			BaseURL:      getEnvOrViper("ORANGE_MONEY_BASE_URL", ""),
		},
		Checkout: CheckoutConfig{
			MaxCartItems:    maxCartItems,
			CFAPerEUR:       rate,
			PendingOrderTTL: ttl,
		},
		Admin: AdminConfig{
			APIKeyHash: getEnvOrViper("ADMIN_API_KEY_HASH", ""),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Provider credentials are checked when a provider is called, so a shop
	// can run with a subset of providers enabled.
	if cfg.PayPal.Mode != "sandbox" && cfg.PayPal.Mode != "live" {
		return nil, fmt.Errorf("PAYPAL_MODE must be sandbox or live")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
