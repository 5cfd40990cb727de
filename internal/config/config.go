package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	SMS      SMSConfig
	SMTP     SMTPConfig
	Kafka    KafkaConfig
	Import   ImportConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type SMSConfig struct {
	// Provider is "twilio" or "log"; the log sender only writes to
	// the application log.
	Provider   string
	AccountSID string
	AuthToken  string
	From       string
}

type SMTPConfig struct {
	// Provider is "smtp" or "log"
	Provider string
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type KafkaConfig struct {
	// Brokers is a comma separated list; empty disables publishing
	Brokers string
}

type ImportConfig struct {
	Delimiter string
}

func Load() *Config {
	// Push .env into the process environment first so AutomaticEnv
	// sees the same values as a containerized deployment would.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("SMS_PROVIDER", "log")
	viper.SetDefault("SMTP_PROVIDER", "log")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("IMPORT_DELIMITER", ",")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		SMS: SMSConfig{
			Provider:   viper.GetString("SMS_PROVIDER"),
			AccountSID: viper.GetString("SMS_ACCOUNT_SID"),
			AuthToken:  viper.GetString("SMS_AUTH_TOKEN"),
			From:       viper.GetString("SMS_FROM"),
		},
		SMTP: SMTPConfig{
			Provider: viper.GetString("SMTP_PROVIDER"),
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: viper.GetString("SMTP_USERNAME"),
			Password: viper.GetString("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetString("KAFKA_BROKERS"),
		},
		Import: ImportConfig{
			Delimiter: viper.GetString("IMPORT_DELIMITER"),
		},
	}
}
