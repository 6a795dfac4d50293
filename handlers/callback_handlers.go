package handlers

import (
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v2"

	"vetarchive/internal/store"
	"vetarchive/internal/transcriber"
	"vetarchive/utils"
)

// CallbackRequest is the payload the external worker pushes when a
// transcription job reaches a terminal state.
type CallbackRequest struct {
	VideoID  int64  `json:"video_id" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=done error"`
	Text     string `json:"text"`
	ErrorMsg string `json:"error_msg"`
}

// ReceiveTranscript is the push-mode completion webhook. It requires
// the shared callback token so arbitrary hosts cannot overwrite
// transcripts. A done status persists the text; an error status
// persists a failure indicator. Last write wins against concurrent
// polls, which matches the rest of the transcript lifecycle.
// POST /api/callback
func (h *ApplicationHandler) ReceiveTranscript(c *fiber.Ctx) error {
	token := c.Get("X-Callback-Token")
	if h.Config.CallbackToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.Config.CallbackToken)) != 1 {
		h.Logger.WithField("client_ip", c.IP()).Warn("Callback with missing or wrong token")
		return utils.RespondWithError(c, fiber.StatusUnauthorized, "Invalid callback token")
	}

	payload := new(CallbackRequest)
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

	var text string
	switch payload.Status {
	case transcriber.StatusDone:
		if payload.Text == "" {
			return utils.RespondWithError(c, fiber.StatusBadRequest, "Done callback without text")
		}
		text = payload.Text
	case transcriber.StatusError:
		text = transcriber.FailureText(payload.ErrorMsg)
	}

	err := h.Store.UpdateTranscript(payload.VideoID, text)
	if errors.Is(err, store.ErrNotFound) {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
	}
	if err != nil {
		h.Logger.WithError(err).WithField("video_id", payload.VideoID).Error("Persisting callback transcript failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not store transcript")
	}

	h.Logger.WithFields(map[string]interface{}{
		"video_id": payload.VideoID,
		"status":   payload.Status,
	}).Info("Transcript updated from callback")
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"video_id": payload.VideoID})
}
