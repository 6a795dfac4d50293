package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"

	"vetarchive/internal/worker"
	"vetarchive/models"
	"vetarchive/utils"
)

// repairWorkers bounds how many ffmpeg processes the bulk repair runs
// at once.
const repairWorkers = 3

// thumbRepairJob regenerates one video's thumbnail and persists the
// resulting filename.
type thumbRepairJob struct {
	video models.Video
	h     *ApplicationHandler
	ctx   context.Context

	mu     *sync.Mutex
	report map[int64]string // video id -> error text, "" on success
}

func (j *thumbRepairJob) ID() string {
	return fmt.Sprintf("thumb_repair_%d", j.video.ID)
}

func (j *thumbRepairJob) Execute() error {
	name, err := j.h.Thumbnailer.Generate(j.ctx, j.video.Type, j.video.Path, j.video.ID)
	if err == nil && name != "" {
		err = j.h.Store.UpdateThumbnail(j.video.ID, name)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.report[j.video.ID] = err.Error()
		return err
	}
	j.report[j.video.ID] = ""
	return nil
}

// FixThumbnails re-runs thumbnail generation for every local video and
// reports the outcome per video. Remote kinds are skipped: their
// thumbnails either came from the add flow or cannot be extracted at
// all.
// GET /fix_thumbs
func (h *ApplicationHandler) FixThumbnails(c *fiber.Ctx) error {
	videos, err := h.Store.List("")
	if err != nil {
		h.Logger.WithError(err).Error("Listing videos for repair failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not list videos")
	}

	var mu sync.Mutex
	report := make(map[int64]string)
	jobs := []worker.Job{}
	locals := []models.Video{}
	for _, v := range videos {
		if v.Type != models.TypeLocal {
			continue
		}
		locals = append(locals, v)
		jobs = append(jobs, &thumbRepairJob{
			video:  v,
			h:      h,
			ctx:    c.Context(),
			mu:     &mu,
			report: report,
		})
	}

	pool := worker.NewPool(repairWorkers, h.Logger)
	pool.RunAll(jobs)

	type repairEntry struct {
		VideoID int64  `json:"video_id"`
		Title   string `json:"title"`
		OK      bool   `json:"ok"`
		Error   string `json:"error,omitempty"`
	}

	entries := make([]repairEntry, 0, len(locals))
	updated := 0
	for _, v := range locals {
		errText := report[v.ID]
		if errText == "" {
			updated++
		}
		entries = append(entries, repairEntry{
			VideoID: v.ID,
			Title:   v.Title,
			OK:      errText == "",
			Error:   errText,
		})
	}

	h.Logger.WithFields(map[string]interface{}{
		"total":   len(locals),
		"updated": updated,
	}).Info("Thumbnail repair finished")

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"total":   len(locals),
		"updated": updated,
		"report":  entries,
	})
}
