package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lysyi3m/forum-digest/app/api"
	"github.com/lysyi3m/forum-digest/app/cfg"
	"github.com/lysyi3m/forum-digest/app/config"
	"github.com/lysyi3m/forum-digest/app/database"
	"github.com/lysyi3m/forum-digest/app/digest"
	"github.com/lysyi3m/forum-digest/app/forum"
	"github.com/lysyi3m/forum-digest/app/llm"
	"github.com/lysyi3m/forum-digest/app/sink"
	"github.com/lysyi3m/forum-digest/app/tasks"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Optional .env file for local development
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	log.Printf("Starting Forum Digest %s...", appCfg.Version)

	// Database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	log.Printf("Database ready (schema version %d, dirty: %v)", version, dirty)

	// Repositories
	topicRepo := database.NewTopicRepository(db)
	summaryRepo := database.NewSummaryRepository(db)
	cursorRepo := database.NewCursorRepository(db)

	// Summarization profile
	log.Printf("Loading summarization profile from %s...", appCfg.ProfilePath)
	profile, err := config.NewLoader(appCfg.ProfilePath).Load()
	if err != nil {
		log.Fatal("Failed to load profile: ", err)
	}
	log.Printf("Profile loaded (format: %s, sink: %s)", profile.Prompt.Format, profile.Pipeline.Sink)

	// Forum client
	forumClient := forum.NewClient(appCfg.ForumBaseUrl,
		&http.Client{Timeout: 30 * time.Second}, appCfg.UserAgent,
		time.Duration(appCfg.PageDelay)*time.Millisecond, appCfg.MaxTopicPages)

	// LLM client. The HTTP client timeout stays above the call budget so
	// the budget is the effective bound.
	llmBudget := time.Duration(appCfg.LLMTimeout) * time.Second
	llmClient, err := llm.NewClient(appCfg.OllamaBaseUrl,
		&http.Client{Timeout: llmBudget + 30*time.Second},
		appCfg.Model, llmBudget, profile.Prompt.System, profile.Prompt.Format,
		llm.NewTokenCounter())
	if err != nil {
		log.Fatal("Failed to create LLM client: ", err)
	}

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serverVersion, err := llmClient.Version(probeCtx); err != nil {
		log.Printf("Warning: Inference server not reachable: %v", err)
	} else {
		log.Printf("Inference server ready (version %s, model %s)", serverVersion, appCfg.Model)
	}
	probeCancel()

	// Pipeline components
	guard := digest.NewGuard(topicRepo, summaryRepo)
	preparer := digest.NewPreparer(profile.Pipeline.ExcerptMaxChars, profile.Pipeline.WindowHours)

	var resultSink sink.Sink
	switch profile.Pipeline.Sink {
	case config.SinkRender:
		resultSink = sink.NewRenderSink(profile.Render.OutputDir, profile.Render.Title, siteURL(appCfg))
	default:
		resultSink = sink.NewPersistSink(summaryRepo)
	}

	// Scheduler
	log.Printf("Starting digest scheduler (interval: %ds)...", appCfg.DigestInterval)
	scheduler := tasks.NewScheduler(forumClient, llmClient, guard, preparer,
		resultSink, topicRepo, cursorRepo, profile.Pipeline.MaxPosts)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	apiHandler := api.NewHandler(topicRepo, summaryRepo, forumClient, scheduler,
		profile, appCfg.Version, siteURL(appCfg))
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Forum Digest started successfully")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	log.Println("Forum Digest shutdown complete")
}

// siteURL is the public base URL for generated links, falling back to the
// local listen address when none is configured
func siteURL(appCfg *cfg.Cfg) string {
	if appCfg.BaseUrl != "" {
		return appCfg.BaseUrl
	}
	return "http://localhost:" + appCfg.Port
}
