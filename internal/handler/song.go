package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/service"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/pkg/response"
)

type SongHandler struct {
	service *service.BandService
	poller  *service.PollService
}

func NewSongHandler(svc *service.BandService, poller *service.PollService) *SongHandler {
	return &SongHandler{
		service: svc,
		poller:  poller,
	}
}

// Get handles GET /api/songs/:songId
func (h *SongHandler) Get(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	song, err := h.service.GetSong(c.Context(), songID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, song)
}

// Process handles POST /api/songs/:songId/process
func (h *SongHandler) Process(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	song, err := h.service.QueueSong(c.Context(), songID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		if errors.Is(err, service.ErrValidation) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, song)
}

// Retry handles POST /api/songs/:songId/retry. Only failed songs are
// eligible; the reset stage depends on what the song already has.
func (h *SongHandler) Retry(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	song, err := h.service.RetrySong(c.Context(), songID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		if errors.Is(err, service.ErrValidation) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, song)
}

// WaitAudio handles POST /api/songs/:songId/audio/wait. It blocks until the
// song leaves audio_processing or the wait ceiling passes, then returns the
// record as it stands.
func (h *SongHandler) WaitAudio(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	var req struct {
		MaxWaitSeconds int `json:"maxWaitSeconds"`
	}
	_ = c.BodyParser(&req)

	song, err := h.poller.WaitForAudio(c.Context(), songID, time.Duration(req.MaxWaitSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		if errors.Is(err, service.ErrValidation) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, song)
}
