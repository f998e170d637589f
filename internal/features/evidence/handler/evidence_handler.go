package handler

import (
	"errors"
	"strconv"

	"evidence-capture/internal/features/evidence/domain"
	"evidence-capture/internal/features/evidence/service"

	"github.com/gofiber/fiber/v2"
)

// EvidenceHandler handles HTTP requests for evidence reads.
type EvidenceHandler struct {
	evidenceService *service.Service
}

// NewEvidenceHandler creates a new EvidenceHandler.
func NewEvidenceHandler(evidenceService *service.Service) *EvidenceHandler {
	return &EvidenceHandler{
		evidenceService: evidenceService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// GetCurrentStatus returns the most recent evidence record for a shipment.
func (h *EvidenceHandler) GetCurrentStatus(c *fiber.Ctx) error {
	shipmentID := c.Params("shipmentID")
	if shipmentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "shipment id is required",
			RayID:   c.Locals("requestid").(string),
		})
	}

	record, err := h.evidenceService.CurrentStatus(c.UserContext(), shipmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNoRecords) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Message: "no evidence records for shipment",
				RayID:   c.Locals("requestid").(string),
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(record)
}

// GetHistory returns the full evidence trail for a shipment, most recent first.
func (h *EvidenceHandler) GetHistory(c *fiber.Ctx) error {
	shipmentID := c.Params("shipmentID")
	if shipmentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "shipment id is required",
			RayID:   c.Locals("requestid").(string),
		})
	}

	records, err := h.evidenceService.History(c.UserContext(), shipmentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	if records == nil {
		records = []domain.Record{}
	}
	return c.JSON(records)
}

// GetRecord returns a single evidence record by id.
func (h *EvidenceHandler) GetRecord(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "record id must be an integer",
			RayID:   c.Locals("requestid").(string),
		})
	}

	record, err := h.evidenceService.Record(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Message: "evidence record not found",
				RayID:   c.Locals("requestid").(string),
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(record)
}
