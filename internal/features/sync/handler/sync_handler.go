package handler

import (
	"errors"

	carrierports "evidence-capture/internal/features/carriers/ports"
	"evidence-capture/internal/features/sync/domain"
	"evidence-capture/internal/features/sync/service"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler handles HTTP requests that trigger capture syncs.
type SyncHandler struct {
	orchestrator *service.Orchestrator
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(orchestrator *service.Orchestrator) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RecordID is the final evidence record of the failed sync, if one exists.
	RecordID int64 `json:"record_id,omitempty"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// SyncResponse is the success payload of a single sync.
type SyncResponse struct {
	Success  bool  `json:"success"`
	RecordID int64 `json:"record_id"`
}

// BatchRequest is the payload of a batch sync trigger.
type BatchRequest struct {
	Items []domain.Request `json:"items"`
}

// SyncOne triggers a capture sync for one shipment/tracking pair.
func (h *SyncHandler) SyncOne(c *fiber.Ctx) error {
	var req domain.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	if req.TrackingNumber == "" || req.Carrier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "tracking_number and carrier are required",
			RayID:   c.Locals("requestid").(string),
		})
	}

	result := h.orchestrator.SyncOne(c.UserContext(), req)
	if result.Err != nil {
		status := fiber.StatusBadGateway
		switch {
		case errors.Is(result.Err, carrierports.ErrUnsupportedCarrier):
			status = fiber.StatusUnprocessableEntity
		case errors.Is(result.Err, domain.ErrAlreadyInProgress):
			status = fiber.StatusConflict
		}

		return c.Status(status).JSON(ErrorResponse{
			Message:  result.Err.Error(),
			RecordID: result.RecordID,
			RayID:    c.Locals("requestid").(string),
		})
	}

	return c.JSON(SyncResponse{
		Success:  true,
		RecordID: result.RecordID,
	})
}

// SyncBatch triggers capture syncs for a set of shipments and reports per-item
// outcomes. The call succeeds even when individual items fail.
func (h *SyncHandler) SyncBatch(c *fiber.Ctx) error {
	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "items must not be empty",
			RayID:   c.Locals("requestid").(string),
		})
	}

	for _, item := range req.Items {
		if item.TrackingNumber == "" || item.Carrier == "" {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Message: "every item needs tracking_number and carrier",
				RayID:   c.Locals("requestid").(string),
			})
		}
	}

	outcomes := h.orchestrator.SyncBatch(c.UserContext(), req.Items)
	return c.JSON(outcomes)
}
