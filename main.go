package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"

	"vetarchive/config"
	"vetarchive/handlers"
	"vetarchive/internal/store"
	"vetarchive/internal/thumbnail"
	"vetarchive/internal/transcriber"
	"vetarchive/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := config.NewLogger()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer st.Close()

	sessions := session.New()

	h := handlers.NewApplicationHandler(
		st,
		transcriber.NewClient(cfg.WorkerURL, cfg.PublicURL, logger),
		thumbnail.NewGenerator(cfg.VideosDir, cfg.ThumbnailsDir, logger),
		sessions,
		logger,
		cfg,
	)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// Media served directly; PUBLIC_URL links for the worker point here.
	app.Static("/static/videos", cfg.VideosDir)
	app.Static("/static/thumbnails", cfg.ThumbnailsDir)

	// Public surface
	app.Get("/", h.ListVideos)
	app.Get("/video/:id", h.GetVideo)
	app.Post("/login", h.Login)
	app.Get("/logout", h.Logout)
	app.Post("/api/callback", h.ReceiveTranscript)

	// Operator surface, behind the shared-password session
	requireLogin := middleware.RequireLogin(sessions)
	app.Post("/add", requireLogin, h.AddVideo)
	app.Post("/delete/:id", requireLogin, h.DeleteVideo)
	app.Get("/fix_thumbs", requireLogin, h.FixThumbnails)
	app.Post("/api/upload", requireLogin, h.UploadVideos)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down")
		_ = app.Shutdown()
	}()

	logger.WithField("addr", cfg.ListenAddr).Info("Starting archive server")
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}
