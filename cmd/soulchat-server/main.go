package main

import (
	"net/http"

	"soulchat-backend/internal/config"
	"soulchat-backend/internal/db"
	"soulchat-backend/internal/dialogue"
	"soulchat-backend/internal/jobs"
	"soulchat-backend/internal/llm"
	"soulchat-backend/internal/logger"
	"soulchat-backend/internal/server"
	"soulchat-backend/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	sessionStore, err := newStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize session store", "backend", cfg.StoreBackend, "error", err)
	}

	prompt, err := dialogue.LoadPromptSpec(cfg.PromptFile)
	if err != nil {
		log.Fatal("failed to load prompt spec", "path", cfg.PromptFile, "error", err)
	}

	providers := make(map[string]dialogue.ProviderInfo, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[name] = dialogue.ProviderInfo{
			Name:        name,
			URL:         p.URL,
			Models:      p.Models,
			KeyRequired: p.KeyRequired,
			APIKey:      p.APIKey,
		}
	}

	gen := dialogue.NewGenerator(llm.NewHTTPClient(), providers,
		cfg.DefaultProvider, cfg.DefaultModel, prompt, sessionStore, cfg.LLMTimeout, log)
	gate := dialogue.NewSafetyGate(cfg.CrisisHotline)
	pipeline := dialogue.NewPipeline(sessionStore, gate, gen, cfg.MaxHistoryTurns, cfg.HTMLLineBreaks, log)
	summarizer := dialogue.NewSummarizer(gen, sessionStore, cfg.SummaryProvider, cfg.SummaryModel, cfg.SummaryPrompt)

	queue := jobs.NewQueue(cfg.JobWorkers, cfg.JobRetention, log)
	defer queue.Close()

	srv := server.NewServer(cfg, sessionStore, pipeline, summarizer, queue, log)

	addr := ":" + cfg.Port
	log.Info("soulchat server listening", "addr", addr,
		"store", cfg.StoreBackend, "default_provider", cfg.DefaultProvider)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func newStore(cfg config.Config, log *logger.Logger) (dialogue.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedisStore(cfg.RedisURL)
	case "postgres":
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(); err != nil {
			return nil, err
		}
		return store.NewPostgresStore(database), nil
	default:
		log.Warn("using in-memory session store; sessions are lost on restart")
		return store.NewMemoryStore(), nil
	}
}
