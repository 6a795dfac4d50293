package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/sirupsen/logrus"

	"vetarchive/config"
	"vetarchive/internal/store"
	"vetarchive/internal/transcriber"
)

// TranscriberInterface is what handlers need from the worker client.
// Decoupling it from the concrete client keeps handler tests free of
// real network calls.
type TranscriberInterface interface {
	Enabled() bool
	Submit(ctx context.Context, videoID int64, sourceKind, path string) (string, error)
	Poll(ctx context.Context, taskID string) (*transcriber.StatusResult, error)
}

// ThumbnailerInterface is what handlers need from the ffmpeg wrapper.
type ThumbnailerInterface interface {
	Generate(ctx context.Context, sourceKind, sourceRef string, videoID int64) (string, error)
}

// ApplicationHandler holds shared dependencies for all handlers.
type ApplicationHandler struct {
	Store       *store.Store
	Transcriber TranscriberInterface
	Thumbnailer ThumbnailerInterface
	Sessions    *session.Store
	Logger      *logrus.Logger
	Config      *config.Config
}

// NewApplicationHandler wires up the handler dependency struct.
func NewApplicationHandler(
	st *store.Store,
	tr TranscriberInterface,
	th ThumbnailerInterface,
	sessions *session.Store,
	logger *logrus.Logger,
	cfg *config.Config,
) *ApplicationHandler {
	return &ApplicationHandler{
		Store:       st,
		Transcriber: tr,
		Thumbnailer: th,
		Sessions:    sessions,
		Logger:      logger,
		Config:      cfg,
	}
}
