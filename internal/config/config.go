// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON file, a .env file
// and environment variables, applied in that order.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address" envconfig:"SERVER_ADDRESS"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn" envconfig:"DATABASE_DSN" validate:"required"`

	// Config is the path to the Config file.
	Config string `json:"-" envconfig:"CONFIG"`

	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error Debug Info Warn Error"`
	LogFile  string `json:"log_file" envconfig:"LOG_FILE"`

	// BaseURL is the public origin used in magic links and checkout redirects.
	BaseURL   string `json:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	JWTSecret string `json:"jwt_secret" envconfig:"JWT_SECRET" validate:"required"`

	TwilioAccountSID  string `json:"twilio_account_sid" envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `json:"twilio_auth_token" envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `json:"twilio_phone_number" envconfig:"TWILIO_PHONE_NUMBER"`
	TwilioAPIURL      string `json:"twilio_api_url" envconfig:"TWILIO_API_URL" validate:"required,url"`
	// TwilioWebhookURL is the public URL Twilio posts to; it is part of the
	// signed payload. When empty it is rebuilt from the request.
	TwilioWebhookURL string `json:"twilio_webhook_url" envconfig:"TWILIO_WEBHOOK_URL"`

	OpenAIAPIKey     string `json:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIAPIURL     string `json:"openai_api_url" envconfig:"OPENAI_API_URL" validate:"required,url"`
	OpenAIModel      string `json:"openai_model" envconfig:"OPENAI_MODEL"`
	OpenAIAudioModel string `json:"openai_audio_model" envconfig:"OPENAI_AUDIO_MODEL"`

	StripeSecretKey      string `json:"stripe_secret_key" envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret  string `json:"stripe_webhook_secret" envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeMonthlyPriceID string `json:"stripe_monthly_price_id" envconfig:"STRIPE_MONTHLY_PRICE_ID"`
	StripeAnnualPriceID  string `json:"stripe_annual_price_id" envconfig:"STRIPE_ANNUAL_PRICE_ID"`

	S3Bucket        string `json:"s3_bucket" envconfig:"S3_BUCKET"`
	S3Region        string `json:"s3_region" envconfig:"S3_REGION"`
	S3Endpoint      string `json:"s3_endpoint" envconfig:"S3_ENDPOINT"`
	S3AccessKeyID   string `json:"s3_access_key_id" envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `json:"s3_secret_access_key" envconfig:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL string `json:"s3_public_base_url" envconfig:"S3_PUBLIC_BASE_URL"`

	RedisURL string `json:"redis_url" envconfig:"REDIS_URL"`

	// StorageDir receives processed images, UploadDir raw uploads.
	StorageDir string `json:"storage_dir" envconfig:"STORAGE_DIR" validate:"required"`
	UploadDir  string `json:"upload_dir" envconfig:"UPLOAD_DIR" validate:"required"`

	FetchTimeout time.Duration `json:"-" envconfig:"FETCH_TIMEOUT" validate:"gt=0"`
	FetchRetries int           `json:"fetch_retries" envconfig:"FETCH_RETRIES" validate:"gte=0,lte=10"`

	// UnknownSMSRetention bounds how long unmatched inbound messages are kept.
	UnknownSMSRetention time.Duration `json:"-" envconfig:"UNKNOWN_SMS_RETENTION" validate:"gt=0"`
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It exits the process on malformed input.
func Parse() *Options {
	options, err := ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("error while loading config: %v", err)
	}
	return options
}

// ParseArgs builds Options from args and the process environment.
func ParseArgs(args []string) (*Options, error) {
	options := &Options{}

	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	flags.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	flags.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flags.StringVar(&options.Config, "config", "config.json", "path to config file")
	flags.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	flags.StringVar(&options.LogLevel, "l", "info", "log level")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	options.BaseURL = "https://myhatchling.ai"
	options.TwilioAPIURL = "https://api.twilio.com"
	options.OpenAIAPIURL = "https://api.openai.com/v1"
	options.OpenAIModel = "gpt-4o-mini"
	options.OpenAIAudioModel = "whisper-1"
	options.StorageDir = "processed_images"
	options.UploadDir = "uploads"
	options.FetchTimeout = 15 * time.Second
	options.FetchRetries = 2
	options.UnknownSMSRetention = 30 * 24 * time.Hour

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		data, err := os.ReadFile(options.Config)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process("", options); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	return options, nil
}

var validate = validator.New()

// Validate reports missing or malformed settings the server cannot start
// without.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TwilioEnabled reports whether outbound SMS can be sent.
func (o *Options) TwilioEnabled() bool {
	return o.TwilioAccountSID != "" && o.TwilioAuthToken != "" && o.TwilioPhoneNumber != ""
}

// S3Enabled reports whether processed media is published to S3.
func (o *Options) S3Enabled() bool {
	return o.S3Bucket != ""
}
