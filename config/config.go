package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds everything the archive reads from the environment.
// WorkerURL and PublicURL may be empty, in which case transcription
// submission is skipped entirely.
type Config struct {
	ListenAddr    string
	DBPath        string
	VideosDir     string
	ThumbnailsDir string
	WorkerURL     string // base URL of the external transcription worker
	PublicURL     string // externally reachable base URL of this site
	AdminPassword string
	CallbackToken string // shared secret expected on /api/callback
}

// Load reads configuration from the environment, after loading a .env
// file if one is present. Missing optional values fall back to defaults
// suitable for local development.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may be set by the deployment.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":5000"),
		DBPath:        getEnv("DB_PATH", filepath.Join("data", "archive.db")),
		VideosDir:     getEnv("VIDEOS_DIR", filepath.Join("static", "videos")),
		ThumbnailsDir: getEnv("THUMBNAILS_DIR", filepath.Join("static", "thumbnails")),
		WorkerURL:     os.Getenv("WORKER_URL"),
		PublicURL:     os.Getenv("PUBLIC_URL"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin"),
		CallbackToken: os.Getenv("CALLBACK_TOKEN"),
	}

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.VideosDir, cfg.ThumbnailsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
