package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ifc-service/internal/models"
	"ifc-service/internal/services"
)

// MarkerHandler defines handlers for QR marker placement.
type MarkerHandler struct {
	Service *services.MarkerService
	logger  *zap.Logger
}

// NewMarkerHandler creates a new MarkerHandler with the given MarkerService.
func NewMarkerHandler(service *services.MarkerService, logger *zap.Logger) *MarkerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkerHandler{Service: service, logger: logger}
}

// CreateMarker handles POST /markers to encode and store a marker.
// @Summary Create a QR marker
// @Description Encode a marker placement for an uploaded model into a QR payload
// @Tags markers
// @Accept json
// @Produce json
// @Param marker body models.MarkerRequest true "Marker placement"
// @Success 201 {object} models.Marker "Marker created"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /markers [post]
func (h *MarkerHandler) CreateMarker(c *fiber.Ctx) error {
	var req models.MarkerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid request body: " + err.Error(), "kind": KindInvalidInput,
		})
	}
	m, err := h.Service.CreateMarker(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, "marker rejected", err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// ListMarkers handles GET /markers, optionally filtered by file_id.
// @Summary List QR markers
// @Tags markers
// @Produce json
// @Param file_id query string false "Only markers of this file"
// @Success 200 {array} models.Marker "Markers"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Router /markers [get]
func (h *MarkerHandler) ListMarkers(c *fiber.Ctx) error {
	markers, err := h.Service.ListMarkers(c.UserContext(), c.Query("file_id"))
	if err != nil {
		return respondError(c, h.logger, "error listing markers", err)
	}
	return c.JSON(markers)
}

// GetMarker handles GET /markers/:id.
// @Summary Get a QR marker
// @Tags markers
// @Produce json
// @Param id path string true "Marker ID"
// @Success 200 {object} models.Marker "Marker found"
// @Failure 404 {object} map[string]interface{} "Marker not found"
// @Router /markers/{id} [get]
func (h *MarkerHandler) GetMarker(c *fiber.Ctx) error {
	m, err := h.Service.GetMarker(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "error fetching marker", err)
	}
	return c.JSON(m)
}

// DeleteMarker handles DELETE /markers/:id.
// @Summary Delete a QR marker
// @Tags markers
// @Param id path string true "Marker ID"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Marker not found"
// @Router /markers/{id} [delete]
func (h *MarkerHandler) DeleteMarker(c *fiber.Ctx) error {
	if err := h.Service.DeleteMarker(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, "delete failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DecodeMarker handles GET /markers/decode?payload= for scanned QR codes.
// @Summary Decode a scanned QR payload
// @Tags markers
// @Produce json
// @Param payload query string true "Base64 payload"
// @Success 200 {object} marker.Payload "Decoded placement"
// @Failure 400 {object} map[string]interface{} "Malformed payload"
// @Router /markers/decode [get]
func (h *MarkerHandler) DecodeMarker(c *fiber.Ctx) error {
	p, err := h.Service.DecodePayload(c.Query("payload"))
	if err != nil {
		return respondError(c, h.logger, "decode failed", err)
	}
	return c.JSON(p)
}
