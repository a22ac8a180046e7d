package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the video library system.
type Config struct {
	// Server
	Port string

	// Storage
	DataPath      string // database file + exports + thumbnail cache
	DownloadDir   string // downloaded source videos
	ClipsDir      string // cut clips
	FramesDir     string // sampled frames + thumbnails

	// Scraper API keys (sources without a key are skipped)
	PexelsAPIKey  string
	PixabayAPIKey string

	// AI tagging
	GeminiAPIKey   string
	GeminiModel    string
	TaggerTimeout  time.Duration
	TaggerDelay    time.Duration // throttle between tagging calls
	TaggerRetries  int

	// Clip segmentation
	ClipMinSeconds float64
	ClipMaxSeconds float64
	MaxClipsPerSource int

	// Media decode guard
	DecodeTimeout time.Duration
}

// Load reads the .env file (if present) and the environment.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		DataPath:          getEnvOrDefault("DATA_PATH", "./data"),
		DownloadDir:       getEnvOrDefault("DOWNLOAD_DIR", "./data/downloads"),
		ClipsDir:          getEnvOrDefault("CLIPS_DIR", "./data/clips"),
		FramesDir:         getEnvOrDefault("FRAMES_DIR", "./data/frames"),
		PexelsAPIKey:      os.Getenv("PEXELS_API_KEY"),
		PixabayAPIKey:     os.Getenv("PIXABAY_API_KEY"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		TaggerTimeout:     getEnvAsDuration("TAGGER_TIMEOUT", 45*time.Second),
		TaggerDelay:       getEnvAsDuration("TAGGER_DELAY", 1*time.Second),
		TaggerRetries:     getEnvAsIntOrDefault("TAGGER_RETRIES", 3),
		ClipMinSeconds:    getEnvAsFloat("CLIP_DURATION_MIN", 3),
		ClipMaxSeconds:    getEnvAsFloat("CLIP_DURATION_MAX", 10),
		MaxClipsPerSource: getEnvAsIntOrDefault("MAX_CLIPS_PER_SOURCE", 10),
		DecodeTimeout:     getEnvAsDuration("DECODE_TIMEOUT", 2*time.Minute),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsIntOrDefault(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
