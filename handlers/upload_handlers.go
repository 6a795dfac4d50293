package handlers

import (
	"github.com/gofiber/fiber/v2"

	"vetarchive/models"
	"vetarchive/utils"
)

// UploadRequest is a batch of externally sourced records, typically
// produced by the offline transcript scraper. Entries usually arrive
// with transcripts already attached, so no transcription jobs are
// submitted for them.
type UploadRequest struct {
	Videos []models.NewVideo `json:"videos" validate:"required,min=1,dive"`
}

// UploadVideos ingests scraped metadata in bulk. Unlike AddVideo it
// runs no side operations: no thumbnailing, no job submission. Records
// that fail to insert are reported individually without aborting the
// rest of the batch.
// POST /api/upload
func (h *ApplicationHandler) UploadVideos(c *fiber.Ctx) error {
	payload := new(UploadRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Validation failed",
			"errors":  utils.FormatValidationErrors(err),
		})
	}

	type uploadResult struct {
		Title string `json:"title"`
		ID    int64  `json:"id,omitempty"`
		Error string `json:"error,omitempty"`
	}

	results := make([]uploadResult, 0, len(payload.Videos))
	created := 0
	for _, nv := range payload.Videos {
		id, err := h.Store.Create(nv)
		if err != nil {
			h.Logger.WithError(err).WithField("title", nv.Title).Warn("Upload insert failed")
			results = append(results, uploadResult{Title: nv.Title, Error: err.Error()})
			continue
		}
		created++
		results = append(results, uploadResult{Title: nv.Title, ID: id})
	}

	h.Logger.WithFields(map[string]interface{}{
		"received": len(payload.Videos),
		"created":  created,
	}).Info("Bulk upload processed")

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"created": created,
		"results": results,
	})
}
