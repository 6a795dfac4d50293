package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"vetarchive/internal/store"
	"vetarchive/internal/transcriber"
	"vetarchive/models"
	"vetarchive/utils"
)

var validate = validator.New()

// ListVideos serves the front page data: all videos, optionally
// filtered by exact category, or a full-text search when q is present.
// GET /?q=...&category=...
func (h *ApplicationHandler) ListVideos(c *fiber.Ctx) error {
	query := c.Query("q")
	category := c.Query("category")
	if category == "all" {
		category = ""
	}

	var (
		videos []models.Video
		err    error
	)
	if query != "" {
		videos, err = h.Store.Search(query, category)
	} else {
		videos, err = h.Store.List(category)
	}
	if err != nil {
		h.Logger.WithError(err).Error("Listing videos failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not list videos")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"videos":   videos,
		"query":    query,
		"category": c.Query("category", "all"),
	})
}

// GetVideo serves the detail view for one video. When the transcript is
// still empty but a transcription task is in flight, it polls the
// worker once; a definite answer is persisted and returned immediately,
// anything else leaves the record as it was.
// GET /video/:id
func (h *ApplicationHandler) GetVideo(c *fiber.Ctx) error {
	id, err := parseVideoID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid video id")
	}

	video, err := h.Store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
	}
	if err != nil {
		h.Logger.WithError(err).WithField("video_id", id).Error("Fetching video failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch video")
	}

	if video.Transcript == nil && video.ColabTaskID != nil && h.Transcriber.Enabled() {
		if updated := h.pollTranscript(c, video); updated != nil {
			video = updated
		}
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, video)
}

// pollTranscript is the pull-mode fallback: ask the worker for the task
// status and persist a terminal answer. Every failure is swallowed; the
// page renders with whatever transcript state already existed.
func (h *ApplicationHandler) pollTranscript(c *fiber.Ctx, video *models.Video) *models.Video {
	result, err := h.Transcriber.Poll(c.Context(), *video.ColabTaskID)
	if err != nil {
		h.Logger.WithError(err).WithField("video_id", video.ID).Warn("Status poll failed")
		return nil
	}

	var text string
	switch result.Status {
	case transcriber.StatusDone:
		if result.Text == "" {
			return nil
		}
		text = result.Text
	case transcriber.StatusError:
		text = transcriber.FailureText(result.ErrorMsg)
	default:
		// Still running; nothing to persist.
		return nil
	}

	if err := h.Store.UpdateTranscript(video.ID, text); err != nil {
		h.Logger.WithError(err).WithField("video_id", video.ID).Warn("Persisting polled transcript failed")
		return nil
	}
	h.Logger.WithFields(map[string]interface{}{
		"video_id": video.ID,
		"status":   result.Status,
	}).Info("Transcript updated from status poll")

	updated := *video
	updated.Transcript = &text
	return &updated
}

// AddVideo creates a video record, then best-effort generates a
// thumbnail and submits a transcription job. Both side operations may
// fail without affecting the created record.
// POST /add
func (h *ApplicationHandler) AddVideo(c *fiber.Ctx) error {
	payload := new(models.NewVideo)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Validation failed",
			"errors":  utils.FormatValidationErrors(err),
		})
	}

	id, err := h.Store.Create(*payload)
	if err != nil {
		h.Logger.WithError(err).Error("Creating video failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not create video")
	}
	h.Logger.WithFields(map[string]interface{}{
		"video_id": id,
		"title":    payload.Title,
		"type":     payload.Type,
	}).Info("Video created")

	// Thumbnail: only when none was supplied manually, and only for
	// kinds ffmpeg can read.
	if payload.ThumbnailPath == "" {
		if name, err := h.Thumbnailer.Generate(c.Context(), payload.Type, payload.Path, id); err != nil {
			h.Logger.WithError(err).WithField("video_id", id).Warn("Thumbnail generation failed")
		} else if name != "" {
			if err := h.Store.UpdateThumbnail(id, name); err != nil {
				h.Logger.WithError(err).WithField("video_id", id).Warn("Persisting thumbnail failed")
			}
		}
	}

	// Transcription: only when no transcript was supplied.
	if payload.Transcript == "" && h.Transcriber.Enabled() {
		taskID, err := h.Transcriber.Submit(c.Context(), id, payload.Type, payload.Path)
		if err != nil {
			h.Logger.WithError(err).WithField("video_id", id).Warn("Transcription submission failed")
		} else if taskID != "" {
			if err := h.Store.UpdateJobID(id, taskID); err != nil {
				h.Logger.WithError(err).WithField("video_id", id).Warn("Persisting task id failed")
			}
		}
	}

	return utils.RespondWithJSON(c, fiber.StatusCreated, fiber.Map{"id": id})
}

// DeleteVideo removes a video record.
// POST /delete/:id
func (h *ApplicationHandler) DeleteVideo(c *fiber.Ctx) error {
	id, err := parseVideoID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid video id")
	}

	err = h.Store.Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
	}
	if err != nil {
		h.Logger.WithError(err).WithField("video_id", id).Error("Deleting video failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not delete video")
	}

	h.Logger.WithField("video_id", id).Info("Video deleted")
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"deleted": id})
}

func parseVideoID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
