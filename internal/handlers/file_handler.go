package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ifc-service/internal/models"
	"ifc-service/internal/objtag"
	"ifc-service/internal/services"
)

// FileHandler defines handlers for uploaded IFC models and their conversions.
type FileHandler struct {
	Service *services.FileService
	logger  *zap.Logger
}

// NewFileHandler creates a new FileHandler with the given FileService.
func NewFileHandler(service *services.FileService, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{Service: service, logger: logger}
}

// conversionResponse writes the outcome of a pipeline run. runErr may be nil.
func (h *FileHandler) conversionResponse(c *fiber.Ctx, run *services.ConversionRun, runErr error, okStatus int, message string) error {
	body := fiber.Map{"file": run.File}
	if run.Result != nil {
		for k, v := range run.Result.Timings.GetHeaders() {
			c.Set(k, v)
		}
		body["stage"] = run.Result.Stage
		body["object_count"] = run.Result.ObjectCount
		body["conversion_output"] = run.Result.Stdout
		body["conversion_error"] = run.Result.Stderr
	}
	if runErr != nil {
		status, kind := statusFor(runErr)
		body["error"] = true
		body["message"] = runErr.Error()
		body["kind"] = kind
		h.logger.Warn("conversion failed",
			zap.String("id", run.File.ID.String()),
			zap.String("stage", run.File.Stage),
			zap.Int("status", status),
			zap.Error(runErr))
		return c.Status(status).JSON(body)
	}
	body["message"] = message
	h.logger.Info("conversion finished",
		zap.String("id", run.File.ID.String()),
		zap.Int("objects", run.File.ObjectCount))
	return c.Status(okStatus).JSON(body)
}

// UploadFile handles POST /upload to store and convert an IFC model.
// @Summary Upload an IFC model
// @Description Upload a .ifc file (or an .ifczip/.zip holding exactly one) and convert it to a tagged OBJ mesh
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "IFC model"
// @Success 201 {object} map[string]interface{} "File uploaded and converted"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 409 {object} map[string]interface{} "File already exists"
// @Failure 422 {object} map[string]interface{} "Source artifact missing"
// @Failure 502 {object} map[string]interface{} "Conversion tool failed"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /upload [post]
func (h *FileHandler) UploadFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "no file part", "kind": KindInvalidInput,
		})
	}
	src, err := fileHeader.Open()
	if err != nil {
		return respondError(c, h.logger, "could not open uploaded file", err)
	}
	defer src.Close()

	h.logger.Info("processing upload",
		zap.String("filename", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size),
		zap.String("ip", c.IP()))

	run, err := h.Service.Upload(c.UserContext(), fileHeader.Filename, src)
	if run == nil {
		return respondError(c, h.logger, "upload rejected", err)
	}
	return h.conversionResponse(c, run, err, fiber.StatusCreated, "File uploaded and converted successfully!")
}

// ListFiles handles GET /files to retrieve all uploaded models.
// @Summary List uploaded models
// @Tags files
// @Produce json
// @Success 200 {array} models.ModelFile "All uploaded models"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /files [get]
func (h *FileHandler) ListFiles(c *fiber.Ctx) error {
	files, err := h.Service.ListFiles(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, "error listing files", err)
	}
	return c.JSON(files)
}

// GetFile handles GET /files/:id to retrieve a single model's metadata.
// @Summary Get an uploaded model
// @Tags files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} models.FileSummary "File found"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /files/{id} [get]
func (h *FileHandler) GetFile(c *fiber.Ctx) error {
	file, err := h.Service.GetFile(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "error fetching file", err)
	}
	return c.JSON(file.Summary())
}

// DownloadFile handles GET /files/:id/download to send an artifact.
// @Summary Download a model artifact
// @Tags files
// @Produce application/octet-stream
// @Param id path string true "File ID"
// @Param format query string false "ifc (default), dae or obj"
// @Success 200 {file} binary "Artifact"
// @Failure 400 {object} map[string]interface{} "Invalid UUID or format"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /files/{id}/download [get]
func (h *FileHandler) DownloadFile(c *fiber.Ctx) error {
	path, name, err := h.Service.ArtifactPath(c.UserContext(), c.Params("id"), c.Query("format"))
	if err != nil {
		return respondError(c, h.logger, "download failed", err)
	}
	h.logger.Debug("sending artifact", zap.String("path", path))
	return c.Download(path, name)
}

// DeleteFile handles DELETE /files/:id to remove a model with its artifacts and markers.
// @Summary Delete an uploaded model
// @Tags files
// @Param id path string true "File ID"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Failure 409 {object} map[string]interface{} "Conversion in progress"
// @Router /files/{id} [delete]
func (h *FileHandler) DeleteFile(c *fiber.Ctx) error {
	if err := h.Service.DeleteFile(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, "delete failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DropAll handles DELETE /files to reset every model and marker.
// @Summary Drop all uploaded models
// @Tags files
// @Produce json
// @Success 200 {object} map[string]interface{} "Database dropped"
// @Router /files [delete]
func (h *FileHandler) DropAll(c *fiber.Ctx) error {
	n, err := h.Service.DropAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, "drop failed", err)
	}
	return c.JSON(fiber.Map{"message": "Database dropped successfully!", "deleted": n})
}

// ConvertFile handles POST /files/:id/convert to rerun the pipeline.
// @Summary Reconvert an uploaded model
// @Tags files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} map[string]interface{} "Converted"
// @Failure 409 {object} map[string]interface{} "Conversion in progress"
// @Failure 502 {object} map[string]interface{} "Conversion tool failed"
// @Router /files/{id}/convert [post]
func (h *FileHandler) ConvertFile(c *fiber.Ctx) error {
	run, err := h.Service.Reconvert(c.UserContext(), c.Params("id"))
	if run == nil || run.Result == nil {
		return respondError(c, h.logger, "reconvert rejected", err)
	}
	return h.conversionResponse(c, run, err, fiber.StatusOK, "File converted successfully!")
}

// ListObjects handles GET /files/:id/objects to list the tagged mesh objects.
// @Summary List tagged mesh objects
// @Tags objects
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {array} objtag.Object "Tagged objects"
// @Failure 409 {object} map[string]interface{} "File has not been converted"
// @Router /files/{id}/objects [get]
func (h *FileHandler) ListObjects(c *fiber.Ctx) error {
	objects, err := h.Service.ListObjects(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "listing objects failed", err)
	}
	return c.JSON(objects)
}

// RenameObjects handles PUT /files/:id/objects to rename tagged mesh objects.
// @Summary Rename tagged mesh objects
// @Tags objects
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param updates body []models.RenameRequest true "Renames by tag"
// @Success 200 {object} models.RenameResponse "Applied and unmatched tags"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 404 {object} map[string]interface{} "Unknown tag in strict mode"
// @Router /files/{id}/objects [put]
func (h *FileHandler) RenameObjects(c *fiber.Ctx) error {
	var req []models.RenameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid request body: " + err.Error(), "kind": KindInvalidInput,
		})
	}
	updates := make([]objtag.Update, len(req))
	for i, r := range req {
		updates[i] = objtag.Update{ID: r.ID, Name: r.Name}
	}
	report, err := h.Service.RenameObjects(c.UserContext(), c.Params("id"), updates)
	if err != nil {
		status, body := errorBody(err)
		if report != nil {
			body["unmatched"] = report.Unmatched
		}
		h.logger.Info("rename rejected", zap.Int("status", status), zap.Error(err))
		return c.Status(status).JSON(body)
	}
	return c.JSON(models.RenameResponse{Applied: report.Applied, Unmatched: report.Unmatched})
}
