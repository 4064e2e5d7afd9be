package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/comigor/csvchat-go/internal/api"
	"github.com/comigor/csvchat-go/internal/composer"
	"github.com/comigor/csvchat-go/internal/config"
	"github.com/comigor/csvchat-go/internal/history"
	"github.com/comigor/csvchat-go/internal/llm"
	"github.com/comigor/csvchat-go/internal/logger"
	"github.com/comigor/csvchat-go/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.L.Debug("no .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	// A missing credential blocks /ask but nothing else; surface it once here.
	llmReady := cfg.Validate()
	if llmReady != nil {
		logger.L.Warn("llm credential missing; question endpoints will return 503", "error", llmReady)
	}

	var db *sql.DB
	if cfg.History.DBPath != "" {
		db, err = history.OpenDB(cfg.History.DBPath)
		if err != nil {
			logger.L.Error("failed to open history database", "path", cfg.History.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	registry := session.NewRegistry(cfg.History.MaxExchanges, db)
	comp := composer.New(llm.NewClient(cfg.LLM), cfg.LLM)
	router := api.NewRouter(api.NewHandlers(registry, comp, llmReady))

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr, "model", cfg.LLM.Model, "replay_history", cfg.LLM.ReplayHistory)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.L.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
