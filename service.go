package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ewintr.nl/tutorai/auth"
	"ewintr.nl/tutorai/config"
	"ewintr.nl/tutorai/fetcher"
	"ewintr.nl/tutorai/handler"
	"ewintr.nl/tutorai/process"
	"ewintr.nl/tutorai/ratelimit"
	"ewintr.nl/tutorai/scheduler"
	"ewintr.nl/tutorai/storage"
	"ewintr.nl/tutorai/transcript"
	"ewintr.nl/tutorai/tutor"
	"github.com/sashabaranov/go-openai"
)

func main() {
	configPath := flag.String("config", ".", "directory that holds tutorai.yaml")
	flag.Parse()

	conf, err := config.Load(*configPath, "tutorai")
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config: %v\n", err)
		os.Exit(1)
	}
	logger := conf.Logger()
	if err := conf.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := storage.NewPostgres(storage.PostgresInfo{
		Host:     conf.Postgres.Host,
		Port:     conf.Postgres.Port,
		User:     conf.Postgres.User,
		Password: conf.Postgres.Password,
		Database: conf.Postgres.Database,
	})
	if err != nil {
		logger.Error("unable to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer postgres.Close()
	videoRepo := storage.NewPostgresVideoRepository(postgres)
	chunkRepo := storage.NewPostgresChunkRepository(postgres)
	qaRepo := storage.NewPostgresQARepository(postgres)

	openAIClient := openai.NewClient(conf.OpenAI.APIKey)

	var metadata fetcher.MetadataFetcher = fetcher.NewYtDlp(conf.Youtube.YtDlpPath)
	if conf.Youtube.APIKey != "" {
		yt, err := fetcher.NewYoutubeWithAPIKey(ctx, conf.Youtube.APIKey)
		if err != nil {
			logger.Error("unable to create youtube service", slog.String("error", err.Error()))
			os.Exit(1)
		}
		metadata = yt
	}
	validator := fetcher.NewValidator(metadata, conf.Pipeline.LongVideoWarning, logger)

	acquirer := transcript.NewAcquirer(
		transcript.NewYtDlpCaptions(conf.Youtube.YtDlpPath),
		transcript.NewYtDlpAudio(conf.Youtube.YtDlpPath, logger),
		transcript.NewWhisper(openAIClient, conf.OpenAI.TranscriptionModel, conf.Pipeline.TranscriptionsPerMinute),
		transcript.AcquirerConfig{
			CaptionLanguage:             conf.Youtube.CaptionLanguage,
			MergeWindow:                 conf.Pipeline.MergeWindow,
			MaxAudioBytes:               conf.Pipeline.MaxAudioBytes,
			MaxConcurrentTranscriptions: conf.Pipeline.MaxConcurrentTranscriptions,
			TranscriptionTimeout:        conf.Pipeline.TranscriptionTimeout,
		},
		logger,
	)

	limiter, closeLimiter := newLimiter(conf, logger)
	defer closeLimiter()

	processors := process.NewProcessors(acquirer, chunkRepo, process.NewOpenAISummarizer(openAIClient, conf.OpenAI.ChatModel), logger)
	pipeline := process.NewPipeline(processors, videoRepo, chunkRepo, validator, limiter, process.PipelineConfig{
		QueueSize:         conf.Pipeline.QueueSize,
		IngestionsPerHour: conf.Limits.IngestionsPerHour,
	}, logger)
	go pipeline.Run(ctx)

	answerer := tutor.NewAnswerer(tutor.NewOpenAIGenerator(openAIClient, conf.OpenAI.ChatModel), logger)
	tutorService := tutor.NewService(videoRepo, chunkRepo, qaRepo, answerer, limiter, tutor.ServiceConfig{
		QuestionsPerVideoPerHour: conf.Limits.QuestionsPerVideoPerHour,
		GenerationTimeout:        conf.Pipeline.GenerationTimeout,
	}, logger)

	sched := scheduler.NewScheduler(logger)
	if err := sched.Add("sweep", conf.Scheduler.SweepCronSpec, scheduler.NewSweepJob(ctx, pipeline, conf.Pipeline.TranscriptionTimeout, logger)); err != nil {
		logger.Error("unable to schedule sweep job", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if conf.Miniflux.Endpoint != "" {
		mflx := fetcher.NewMiniflux(fetcher.MinifluxInfo{
			Endpoint: conf.Miniflux.Endpoint,
			ApiKey:   conf.Miniflux.APIKey,
		})
		feeds := fetcher.NewFetch(mflx, pipeline, logger)
		if err := sched.Add("feed", conf.Scheduler.FeedCronSpec, scheduler.NewFeedJob(ctx, feeds, logger)); err != nil {
			logger.Error("unable to schedule feed job", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	sched.Start()
	logger.Info("scheduler started", slog.Int("jobs", sched.Entries()))

	identity := auth.NewJWTProvider(conf.Auth.JWTSecret, conf.Auth.Issuer)
	server := handler.NewServer(identity, conf.API.CORSOrigins, logger).
		WithAPI("videos", handler.NewVideoAPI(pipeline, videoRepo, logger)).
		WithAPI("transcripts", handler.NewTranscriptAPI(videoRepo, chunkRepo, logger)).
		WithAPI("qa", handler.NewQAAPI(tutorService, logger))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.API.Port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()
	logger.Info("http server started", slog.Int("port", conf.API.Port))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", slog.String("error", err.Error()))
	}
	sched.Stop()
	pipeline.Wait()

	logger.Info("service stopped")
}

// newLimiter uses redis when it is configured, so quotas hold across
// instances, and an in process limiter otherwise.
func newLimiter(conf *config.Config, logger *slog.Logger) (ratelimit.Limiter, func()) {
	if conf.Limits.IngestionsPerHour <= 0 && conf.Limits.QuestionsPerVideoPerHour <= 0 {
		return ratelimit.Noop{}, func() {}
	}
	if conf.Redis.Addr == "" {
		return ratelimit.NewMemory(), func() {}
	}

	rds, err := ratelimit.NewRedis(ratelimit.RedisInfo{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err != nil {
		logger.Error("unable to connect to redis, using in process limits", slog.String("error", err.Error()))
		return ratelimit.NewMemory(), func() {}
	}

	return rds, func() { rds.Close() }
}
