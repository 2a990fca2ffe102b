// Package main wires configuration, logging, storage, outbound clients,
// services and handlers, then serves the journal API until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/hatchling/journal/internal/ai"
	"github.com/hatchling/journal/internal/auth"
	"github.com/hatchling/journal/internal/billing"
	"github.com/hatchling/journal/internal/config"
	"github.com/hatchling/journal/internal/db"
	"github.com/hatchling/journal/internal/imageproc"
	"github.com/hatchling/journal/internal/logger"
	"github.com/hatchling/journal/internal/repository"
	"github.com/hatchling/journal/internal/server/handler/http"
	"github.com/hatchling/journal/internal/service"
	"github.com/hatchling/journal/internal/sms"
	"github.com/hatchling/journal/internal/storage"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = time.Hour
	// outboundTimeout bounds calls to Twilio and OpenAI.
	outboundTimeout = 30 * time.Second
)

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", firstNonEmpty(version, "N/A"))
	fmt.Printf("Build date: %s\n", firstNonEmpty(buildDate, "N/A"))

	log := logger.New()
	if err := log.Init(options.LogLevel, options.LogFile); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	if err := options.Validate(); err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	db.StartUnknownSMSCleaner(ctx, postgresDB, cleanupInterval, options.UnknownSMSRetention, zapLogger)

	entryRepo := repository.NewPostgresEntryRepository(postgresDB)
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	smsRepo := repository.NewPostgresUnknownSMSRepository(postgresDB)

	// One-time magic-link redemption is shared through Redis when available.
	var redeemed auth.RedemptionStore = auth.NewMemoryStore()
	if options.RedisURL != "" {
		store, client, err := auth.NewRedisStoreFromURL(ctx, options.RedisURL)
		if err != nil {
			zapLogger.Fatal("cannot connect to redis", zap.Error(err))
		}
		defer client.Close()
		redeemed = store
	}

	var (
		sender     service.SMSSender = sms.LogSender{Log: zapLogger}
		downloader service.MediaDownloader
		validator  http.SignatureValidator
	)
	if options.TwilioEnabled() {
		client := sms.NewClient(options.TwilioAPIURL, options.TwilioAccountSID, options.TwilioAuthToken,
			options.TwilioPhoneNumber, outboundTimeout)
		sender, downloader = client, client
		validator = sms.NewValidator(options.TwilioAuthToken)
	} else {
		zapLogger.Warn("twilio is not configured, sms delivery and webhook signature checks are disabled")
		downloader = sms.NewClient(options.TwilioAPIURL, "", "", "", outboundTimeout)
	}

	var assistant interface {
		service.Tagger
		service.Transcriber
	} = ai.Disabled{}
	if options.OpenAIAPIKey != "" {
		assistant = ai.NewClient(options.OpenAIAPIURL, options.OpenAIAPIKey, options.OpenAIModel,
			options.OpenAIAudioModel, outboundTimeout)
	} else {
		zapLogger.Warn("openai is not configured, tag suggestion and transcription are disabled")
	}

	var publisher service.Publisher = storage.Local{}
	if options.S3Enabled() {
		s3Publisher, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          options.S3Bucket,
			Region:          options.S3Region,
			Endpoint:        options.S3Endpoint,
			AccessKeyID:     options.S3AccessKeyID,
			SecretAccessKey: options.S3SecretKey,
			PublicBaseURL:   options.S3PublicBaseURL,
		})
		if err != nil {
			zapLogger.Fatal("cannot init s3 publisher", zap.Error(err))
		}
		publisher = s3Publisher
	}

	processor, err := imageproc.New(options.StorageDir,
		imageproc.NewHTTPFetcher(options.FetchTimeout, options.FetchRetries))
	if err != nil {
		zapLogger.Fatal("cannot init image processor", zap.Error(err))
	}

	gateway := billing.NewGateway(billing.Config{
		SecretKey:      options.StripeSecretKey,
		WebhookSecret:  options.StripeWebhookSecret,
		MonthlyPriceID: options.StripeMonthlyPriceID,
		AnnualPriceID:  options.StripeAnnualPriceID,
		BaseURL:        options.BaseURL,
	})

	issuer := auth.NewIssuer(options.JWTSecret)

	entryService := service.NewEntryService(entryRepo, assistant, zapLogger)
	authService := service.NewAuthService(userRepo, issuer, redeemed, sender, options.BaseURL, zapLogger)
	userService := service.NewUserService(userRepo)
	smsService := service.NewSMSService(userRepo, entryRepo, smsRepo, downloader, assistant, assistant, sender, zapLogger)
	imageService := service.NewImageService(processor, publisher, entryService, options.UploadDir)
	billingService := service.NewBillingService(userRepo, gateway, zapLogger)

	router := http.NewRouter(http.Handlers{
		Entry:   &http.EntryHandler{EntryService: entryService, Log: zapLogger},
		Auth:    &http.AuthHandler{AuthService: authService, Log: zapLogger},
		User:    &http.UserHandler{UserService: userService, Log: zapLogger},
		SMS: &http.SMSHandler{
			SMSService: smsService,
			Validator:  validator,
			WebhookURL: options.TwilioWebhookURL,
			Log:        zapLogger,
		},
		Image:   &http.ImageHandler{ImageService: imageService, Log: zapLogger},
		Billing: &http.BillingHandler{BillingService: billingService, Log: zapLogger},
	}, issuer, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// firstNonEmpty returns the first non-empty value (cmp.Or equivalent for go1.21).
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
