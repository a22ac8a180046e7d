package main

import (
	"os"

	"github.com/gin-gonic/gin"

	"github.com/uaffan326-del/video-library-system/api"
	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/database"
	"github.com/uaffan326-del/video-library-system/services"
)

func main() {
	cfg := config.Load()
	config.InitLogger()

	for _, dir := range []string{cfg.DataPath, cfg.DownloadDir, cfg.ClipsDir, cfg.FramesDir} {
		os.MkdirAll(dir, 0755)
	}

	database.InitDB()
	defer database.CloseDB()

	// Seed the category taxonomy before anything gets categorized.
	categorizer := services.NewCategorizer(database.DB)
	if err := categorizer.SeedCategories(); err != nil {
		config.Log.WithField("error", err.Error()).Fatal("Failed to seed categories")
	}

	var tagger services.Tagger
	if cfg.GeminiAPIKey != "" {
		geminiTagger, err := services.NewGeminiTagger(cfg)
		if err != nil {
			config.Log.WithField("error", err.Error()).Warn("AI tagging disabled")
		} else {
			defer geminiTagger.Close()
			tagger = geminiTagger
		}
	} else {
		config.Log.Warn("GEMINI_API_KEY not set, AI tagging disabled")
	}

	scraper := services.NewScraper(cfg)
	orchestrator := services.NewOrchestrator(database.DB, cfg, scraper, tagger)

	// Pick up source videos dropped into the downloads directory by hand.
	watcher := services.NewDownloadsWatcher(cfg.DownloadDir, orchestrator)
	watcher.Start()
	defer watcher.Stop()

	r := gin.Default()

	// Trust no proxies by default. If running behind Nginx/Traefik, this should be configured.
	if err := r.SetTrustedProxies(nil); err != nil {
		config.Log.WithField("error", err.Error()).Warn("Failed to set trusted proxies")
	}

	api.SetupRoutes(r, cfg, orchestrator)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	config.Log.WithField("port", cfg.Port).Info("Starting server")
	if err := r.Run(":" + cfg.Port); err != nil {
		config.Log.WithField("error", err.Error()).Fatal("Server exited")
	}
}
