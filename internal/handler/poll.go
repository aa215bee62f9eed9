package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/service"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/pkg/response"
)

type PollHandler struct {
	poller    *service.PollService
	validator *validator.Validate
}

func NewPollHandler(poller *service.PollService, v *validator.Validate) *PollHandler {
	return &PollHandler{
		poller:    poller,
		validator: v,
	}
}

// Run handles POST /api/poll. The scheduled cycle covers normal operation;
// this endpoint exists for manual force checks and single-song probes.
func (h *PollHandler) Run(c *fiber.Ctx) error {
	var req model.PollRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		if err := h.validator.Struct(&req); err != nil {
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		}
	}

	summary, err := h.poller.Run(c.Context(), service.PollOptions{
		Force:  req.Force,
		SongID: req.SongID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		if errors.Is(err, service.ErrValidation) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, summary)
}
