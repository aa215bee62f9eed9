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

type BandHandler struct {
	service   *service.BandService
	validator *validator.Validate
}

func NewBandHandler(svc *service.BandService, v *validator.Validate) *BandHandler {
	return &BandHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/bands/generate. The band is created as a draft
// and the pipeline runs in the background; 202 tells the client to follow
// the record's status.
func (h *BandHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateBandRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	band, err := h.service.CreateBand(c.Context(), req.Prompt)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.GenerateBandResponse{
		BandID:    band.ID,
		Status:    band.Status,
		CreatedAt: band.CreatedAt,
	})
}

// Get handles GET /api/bands/:bandId
func (h *BandHandler) Get(c *fiber.Ctx) error {
	bandID := c.Params("bandId")
	if bandID == "" {
		return response.ValidationError(c, "Band ID is required", nil)
	}

	detail, err := h.service.GetBandDetail(c.Context(), bandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Band not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, detail)
}

// Songs handles GET /api/bands/:bandId/songs
func (h *BandHandler) Songs(c *fiber.Ctx) error {
	bandID := c.Params("bandId")
	if bandID == "" {
		return response.ValidationError(c, "Band ID is required", nil)
	}

	songs, err := h.service.ListBandSongs(c.Context(), bandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Band not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"songs": songs})
}

// Resume handles POST /api/bands/:bandId/resume
func (h *BandHandler) Resume(c *fiber.Ctx) error {
	bandID := c.Params("bandId")
	if bandID == "" {
		return response.ValidationError(c, "Band ID is required", nil)
	}

	if err := h.service.ResumeBand(c.Context(), bandID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Band not found")
		}
		if errors.Is(err, service.ErrValidation) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, fiber.Map{"bandId": bandID, "resumed": true})
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
