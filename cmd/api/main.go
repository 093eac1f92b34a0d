package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"oracle/internal/adapter/repo"
	"oracle/internal/apistatus"
	"oracle/internal/credentials"
	"oracle/internal/domain"
	"oracle/internal/extract"
	"oracle/internal/http/handlers"
	httpapi "oracle/internal/http/httpapi"
	"oracle/internal/infra"
	"oracle/internal/infra/geoip"
	"oracle/internal/lifecycle"
	"oracle/internal/media"
	"oracle/internal/middleware"
	"oracle/internal/pipeline"
	"oracle/internal/providers/genai"
	"oracle/internal/providers/image"
	"oracle/internal/providers/prompt"
	"oracle/internal/providers/video"
	"oracle/internal/qna"
	"oracle/internal/reports"
	"oracle/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	creds, err := credentials.Open(cfg.CredentialsDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open credential store")
	}
	defer creds.Close()

	var limiter *rate.Limiter
	if cfg.GenerationPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.GenerationPerMin)/60), 1)
	}
	client, err := genai.NewClient(genai.Options{
		BaseURL:     cfg.Gemini.BaseURL,
		Model:       cfg.Gemini.TextModel,
		Credentials: creds,
		Limiter:     limiter,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}

	monitor := apistatus.NewMonitor(&logger)

	openAIKey, err := creds.Token(ctx, credentials.ProviderOpenAI)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read openai key")
	}
	if openAIKey == "" {
		openAIKey = cfg.OpenAI.APIKey
	}
	secondary := prompt.NewOpenAIAnalyzer(prompt.OpenAIOptions{
		APIKey:       openAIKey,
		Model:        cfg.OpenAI.Model,
		BaseURL:      cfg.OpenAI.BaseURL,
		Organization: cfg.OpenAI.Org,
		OnWarning: func(reason, detail string) {
			logger.Warn().Str("reason", reason).Str("detail", detail).Msg("openai: configuration adjusted")
		},
	})

	resolver, err := pipeline.New(pipeline.Options{
		Searcher:    client,
		SearchModel: cfg.Gemini.TextModel,
		Extractor:   extract.NewHTTPExtractor(extract.Options{Timeout: cfg.Pipeline.ExtractTimeout, Logger: &logger}),
		Primary:     prompt.NewGeminiAnalyzer(prompt.GeminiOptions{Client: client, Model: cfg.Gemini.TextModel}),
		Secondary:   secondary,
		Monitor:     monitor,
		Limits:      cfg.Pipeline,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build resolve pipeline")
	}

	interceptor := lifecycle.NewInterceptor(&logger)
	onTerminal := func(t lifecycle.Terminal) {
		if t.Err != nil {
			monitor.Report(t.Kind, t.Err)
		}
	}
	if err := reports.RegisterOperations(interceptor, onTerminal); err != nil {
		logger.Fatal().Err(err).Msg("failed to register report operations")
	}
	if err := qna.RegisterOperation(interceptor, onTerminal); err != nil {
		logger.Fatal().Err(err).Msg("failed to register question operation")
	}

	var (
		recorder domain.JobRecorder
		history  domain.JobHistory
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		jobs := repo.NewJobRepository(infra.NewSQLRunner(pool, &logger))
		if err := jobs.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare media job history")
		}
		recorder, history = jobs, jobs
	}

	var files media.AssetWriter
	if cfg.StoragePath != "" {
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare asset storage")
		}
		files = store
	}

	manager := media.NewManager(media.Options{
		Images: image.NewGeminiGenerator(image.GeminiOptions{
			Client:   client,
			Model:    cfg.Gemini.ImageModel,
			ProModel: cfg.Gemini.ImageProModel,
		}),
		Videos: video.NewGeminiGenerator(video.Options{
			Client:       client,
			PollInterval: cfg.Video.PollInterval,
			PollTimeout:  cfg.Video.PollTimeout,
		}),
		Analyzer:   prompt.NewMediaAnalyzer(client, cfg.Gemini.TextModel),
		Files:      files,
		Recorder:   recorder,
		Monitor:    monitor,
		VideoModel: cfg.Gemini.VideoModel,
		JobTimeout: cfg.JobTimeout,
		Logger:     &logger,
	})

	var country middleware.CountryLookup
	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if geo != nil {
		country = geo.CountryCode
		defer geo.Close()
	}

	app := &handlers.App{
		Reports: reports.NewService(resolver, interceptor, &logger),
		Media:   manager,
		History: history,
		QnA: qna.NewService(qna.Options{
			Streamer: client,
			Jobs:     manager.Store(),
			Tracker:  interceptor,
			Monitor:  monitor,
			Model:    cfg.Gemini.TextModel,
			Logger:   &logger,
		}),
		Lifecycle:   interceptor,
		Monitor:     monitor,
		Credentials: creds,
		ValidateKey: func(ctx context.Context, provider, key string) error {
			if provider != credentials.ProviderGemini {
				return nil
			}
			return genai.ValidateKey(ctx, cfg.Gemini.BaseURL, nil, key)
		},
		Logger: &logger,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "en",
		Country:         country,
		StaticDir:       cfg.StoragePath,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	done := make(chan struct{})
	go func() {
		manager.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("media jobs still running at exit")
	}
	logger.Info().Msg("server stopped")
}
