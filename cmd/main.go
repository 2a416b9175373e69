package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"github.com/joho/godotenv"

	"github.com/pathwise/pathwise-backend/internal/ai"
	"github.com/pathwise/pathwise-backend/internal/clients/gcsbucket"
	"github.com/pathwise/pathwise-backend/internal/clients/gemini"
	"github.com/pathwise/pathwise-backend/internal/clients/openai"
	"github.com/pathwise/pathwise-backend/internal/clients/openrouter"
	"github.com/pathwise/pathwise-backend/internal/db"
	"github.com/pathwise/pathwise-backend/internal/handlers"
	"github.com/pathwise/pathwise-backend/internal/lessongen"
	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/ratelimit"
	"github.com/pathwise/pathwise-backend/internal/repos"
	"github.com/pathwise/pathwise-backend/internal/research"
	"github.com/pathwise/pathwise-backend/internal/server"
	"github.com/pathwise/pathwise-backend/internal/services"
	"github.com/pathwise/pathwise-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Starting pathwise generation worker...")

	postgres, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Failed to initialize postgres", "error", err)
	}
	if err := postgres.AutoMigrateAll(); err != nil {
		log.Fatal("Failed to migrate postgres tables", "error", err)
	}
	gormDB := postgres.DB()

	moduleRepo := repos.NewModuleRepo(gormDB, log)
	lessonRepo := repos.NewLessonContentRepo(gormDB, log)
	jobRepo := repos.NewGenerationJobRepo(gormDB, log)

	// Provider tiers, in fallback order. A tier with no API key is skipped.
	var providers []ai.Provider
	if p, err := gemini.NewClient(log); err != nil {
		log.Warn("Primary provider unavailable", "provider", "gemini", "reason", err.Error())
	} else {
		providers = append(providers, p)
	}
	if p, err := openai.NewClient(log); err != nil {
		log.Warn("Secondary provider unavailable", "provider", "openai", "reason", err.Error())
	} else {
		providers = append(providers, p)
	}
	if p, err := openrouter.NewClient(log); err != nil {
		log.Warn("Backup provider unavailable", "provider", "openrouter", "reason", err.Error())
	} else {
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		log.Fatal("No AI providers configured")
	}

	gate := ratelimit.NewGate(map[string]time.Duration{
		"gemini":     time.Duration(utils.GetEnvAsInt("PRIMARY_PROVIDER_MIN_INTERVAL_S", 3, log)) * time.Second,
		"openai":     time.Duration(utils.GetEnvAsInt("SECONDARY_PROVIDER_MIN_INTERVAL_S", 0, log)) * time.Second,
		"openrouter": time.Duration(utils.GetEnvAsInt("BACKUP_PROVIDER_MIN_INTERVAL_S", 6, log)) * time.Second,
	}, log)
	orchestrator := ai.NewOrchestrator(providers, gate,
		time.Duration(utils.GetEnvAsInt("AI_CALL_TIMEOUT_S", 60, log))*time.Second, log)

	classifier, err := research.NewClassifier(orchestrator, log)
	if err != nil {
		log.Fatal("Failed to initialize topic classifier", "error", err)
	}

	transcriptStore, err := gcsbucket.NewTranscriptStore(log)
	if err != nil {
		log.Warn("Transcript store unavailable", "reason", err.Error())
	}
	var speechClient *speech.Client
	if utils.GetEnv("SPEECH_TO_TEXT_ENABLED", "false", log) == "true" {
		speechClient, err = speech.NewClient(context.Background())
		if err != nil {
			log.Warn("Speech client unavailable, transcription tier disabled", "reason", err.Error())
			speechClient = nil
		}
	}
	transcripts := research.NewTranscriptChain(
		utils.GetEnv("CAPTIONS_BASE_URL", "", log),
		utils.GetEnv("AUDIO_EXTRACTOR_URL", "", log),
		speechClient,
		transcriptStore,
		log,
	)

	adapterTimeout := time.Duration(utils.GetEnvAsInt("ADAPTER_TIMEOUT_S", 15, log)) * time.Second
	engine := research.NewEngine(
		research.NewDocsAdapter(adapterTimeout, log),
		research.NewStackOverflowAdapter(utils.GetEnv("STACKEXCHANGE_BASE_URL", "", log), adapterTimeout, log),
		research.NewGitHubAdapter(utils.GetEnv("GITHUB_BASE_URL", "", log), utils.GetEnv("GITHUB_TOKEN", "", log), adapterTimeout, log),
		research.NewDevToAdapter(
			utils.GetEnv("DEVTO_BASE_URL", "", log),
			utils.GetEnvAsInt("DEVTO_PRIMARY_WINDOW_DAYS", 365, log),
			utils.GetEnvAsInt("DEVTO_FALLBACK_WINDOW_DAYS", 730, log),
			adapterTimeout, log),
		research.NewYouTubeAdapter(
			utils.GetEnv("YOUTUBE_API_KEY", "", log),
			utils.GetEnv("YOUTUBE_BASE_URL", "", log),
			utils.GetEnv("VIDEO_FALLBACK_BASE_URL", "", log),
			adapterTimeout, transcripts, log),
		research.EngineConfig{
			Deadline:    time.Duration(utils.GetEnvAsInt("RESEARCH_DEADLINE_S", 30, log)) * time.Second,
			SOBaseCount: utils.GetEnvAsInt("SO_BASE_COUNT", 5, log),
			SOMaxCount:  utils.GetEnvAsInt("SO_MAX_COUNT", 8, log),
		},
		log,
	)

	assembler := lessongen.NewAssembler(lessonRepo, classifier, engine, orchestrator,
		utils.GetEnv("SCHEMA_VERSION", "v1", log), log)

	notifier, err := services.NewProgressNotifier(log)
	if err != nil {
		log.Warn("Progress notifier unavailable", "reason", err.Error())
	}

	generation := services.NewModuleGenerationService(gormDB, moduleRepo, lessonRepo, jobRepo, assembler, notifier, services.WorkerConfig{
		PollInterval:      time.Duration(utils.GetEnvAsInt("WORKER_POLL_INTERVAL_S", 2, log)) * time.Second,
		HeartbeatInterval: time.Duration(utils.GetEnvAsInt("WORKER_HEARTBEAT_INTERVAL_S", 15, log)) * time.Second,
		MaxAttempts:       utils.GetEnvAsInt("JOB_MAX_ATTEMPTS", 3, log),
		RetryDelay:        time.Duration(utils.GetEnvAsInt("JOB_RETRY_DELAY_S", 30, log)) * time.Second,
		StaleRunning:      time.Duration(utils.GetEnvAsInt("JOB_STALE_RUNNING_S", 120, log)) * time.Second,
		AssemblyDeadline:  time.Duration(utils.GetEnvAsInt("MODULE_ASSEMBLY_DEADLINE_S", 600, log)) * time.Second,
		Concurrency:       utils.GetEnvAsInt("WORKER_CONCURRENCY", 1, log),
	}, log)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	generation.StartWorker(workerCtx)

	moduleHandler := handlers.NewModuleHandler(moduleRepo, lessonRepo, log)
	router := server.NewRouter(moduleHandler, log)
	httpServer := &http.Server{
		Addr:    ":" + utils.GetEnv("PORT", "8080", log),
		Handler: router,
	}
	go func() {
		log.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", "error", err)
		}
	}()

	// SIGTERM: stop claiming new jobs, give the in-flight module a grace
	// period, then exit. An abandoned module stays in_progress and is
	// resumed on redelivery.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	grace := time.Duration(utils.GetEnvAsInt("SHUTDOWN_GRACE_S", 30, log)) * time.Second
	log.Info("Shutting down", "grace", grace.String())

	stopWorkers()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if notifier != nil {
		_ = notifier.Close()
	}
	log.Info("Shutdown complete")
}
