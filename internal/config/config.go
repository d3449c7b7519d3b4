package config

import (
	"fmt"
	"log"
	"os"

	"github.com/andriansyah/digistore/internal/models"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	REDIS_ADDR     string
	REDIS_PASSWORD string

	KAFKA_ADDRESS string

	TRIPAY_BASE_URL      string
	TRIPAY_API_KEY       string
	TRIPAY_PRIVATE_KEY   string
	TRIPAY_MERCHANT_CODE string

	AUTH_ISSUER   string
	AUTH_CERT_URL string
	ADMIN_EMAIL   string

	LOG_LEVEL string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		REDIS_ADDR:     os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		TRIPAY_BASE_URL:      envDefault("TRIPAY_BASE_URL", "https://tripay.co.id"),
		TRIPAY_API_KEY:       os.Getenv("TRIPAY_API_KEY"),
		TRIPAY_PRIVATE_KEY:   os.Getenv("TRIPAY_PRIVATE_KEY"),
		TRIPAY_MERCHANT_CODE: os.Getenv("TRIPAY_MERCHANT_CODE"),

		AUTH_ISSUER:   os.Getenv("AUTH_ISSUER"),
		AUTH_CERT_URL: os.Getenv("AUTH_CERT_URL"),
		ADMIN_EMAIL:   os.Getenv("ADMIN_EMAIL"),

		LOG_LEVEL: envDefault("LOG_LEVEL", "info"),
	}

	return config, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	host := configuration.DB_HOST
	port := configuration.DB_PORT
	user := configuration.DB_USER
	password := configuration.DB_PASSWORD
	dbname := configuration.DB_NAME

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Invoice{}, &models.InvoiceItem{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
