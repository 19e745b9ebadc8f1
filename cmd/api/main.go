package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"vocalizz/internal/adapter/repo"
	"vocalizz/internal/billing"
	"vocalizz/internal/cache"
	"vocalizz/internal/db"
	"vocalizz/internal/domain"
	"vocalizz/internal/events"
	"vocalizz/internal/http/handlers"
	httpapi "vocalizz/internal/http/httpapi"
	"vocalizz/internal/infra"
	"vocalizz/internal/infra/credentials"
	"vocalizz/internal/jobs"
	"vocalizz/internal/metrics"
	"vocalizz/internal/payments"
	"vocalizz/internal/providers/elevenlabs"
	"vocalizz/internal/providers/replicate"
	"vocalizz/internal/storage"
)

const synthesisCacheTTL = 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}
	runner := infra.NewSQLRunner(dbpool, logger)

	creds := credentials.NewStore(runner)
	replicateKey, err := creds.Resolve(ctx, credentials.ProviderReplicate, cfg.ReplicateAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load replicate credentials")
	}
	elevenKey, err := creds.Resolve(ctx, credentials.ProviderElevenLabs, cfg.ElevenLabsAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load elevenlabs credentials")
	}

	store, files, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open storage")
	}
	defer closeStore()

	var hot cache.Hot
	if cfg.RedisAddr != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, synthesis cache runs on postgres only")
		} else {
			defer rdb.Close()
			hot = cache.NewRedisHot(rdb, synthesisCacheTTL)
		}
	}

	var publisher jobs.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := infra.NewNATSConn(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, job events disabled")
		} else {
			defer nc.Close()
			publisher = events.NewPublisher(nc, logger)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var training jobs.TrainingProvider
	if cfg.ReplicateModelVersion != "" {
		client, err := replicate.NewClient(replicate.Options{
			APIKey:       replicateKey,
			BaseURL:      cfg.ReplicateBaseURL,
			ModelVersion: cfg.ReplicateModelVersion,
			Logger:       &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure replicate")
		}
		if !client.HasCredentials() {
			logger.Warn().Msg("replicate api key missing, training submissions will fail")
		}
		training = client
	} else {
		logger.Warn().Msg("REPLICATE_MODEL_VERSION not set, training disabled")
		training = disabledTraining{}
	}

	speech := elevenlabs.NewClient(elevenlabs.Options{
		APIKey:  elevenKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		Model:   cfg.ElevenLabsModel,
		Logger:  &logger,
	})
	if !speech.HasCredentials() {
		logger.Warn().Msg("elevenlabs api key missing, synthesis will fail")
	}

	catalog, err := payments.LoadCatalog(cfg.PricingCatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load pricing catalog")
	}

	ledger := repo.NewLedgerRepository(runner)
	jobRepo := repo.NewJobRepository(runner)
	synthCache := cache.NewSynthesis(hot, repo.NewSynthesisCacheRepository(runner), logger)

	guard := billing.NewGuard(ledger, collector, logger)
	compensator := jobs.NewCompensator(ledger, store, publisher, collector, logger)
	app := &handlers.App{
		Config:   cfg,
		Logger:   logger,
		DB:       dbpool,
		Accounts: ledger,
		Ledger:   ledger,
		Jobs:     jobRepo,
		Guard:    guard,
		Submitter: jobs.NewSubmitter(jobRepo, compensator, training, store, publisher, collector, logger, jobs.SubmitterConfig{
			CallbackURL: cfg.WebhookURL(),
		}),
		Reconciler:  jobs.NewReconciler(jobRepo, ledger, compensator, publisher, collector, logger),
		Canceller:   jobs.NewCanceller(jobRepo, compensator, training, collector, logger),
		Synthesizer: jobs.NewSynthesizer(guard, jobRepo, ledger, compensator, speech, store, synthCache, logger, speech.Model(), cfg.SignedURLTTL),
		Storage:     store,
		Files:       files,
		Voices:      speech,
		Payments:    payments.NewProcessor(catalog, ledger, logger),
		Stripe:      payments.NewVerifier(cfg.StripeWebhookSecret),
		Metrics:     collector,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           collector.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

// disabledTraining refuses every submission so reservations are compensated
// instead of hanging in queued.
type disabledTraining struct{}

func (disabledTraining) CreateJob(context.Context, domain.TrainingRequest) (string, error) {
	return "", errTrainingDisabled
}

func (disabledTraining) CancelJob(context.Context, string) error { return nil }

var errTrainingDisabled = errors.New("training provider not configured")
