package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// APIPrefix is the mount point of every API route.
const APIPrefix = "/api/ifc"

// RegisterRoutes mounts the file, object and marker routes on app.
func RegisterRoutes(app *fiber.App, files *FileHandler, markers *MarkerHandler) {
	api := app.Group(APIPrefix)

	api.Post("/upload", files.UploadFile)
	api.Get("/files", files.ListFiles)
	api.Delete("/files", files.DropAll)
	api.Get("/files/:id", files.GetFile)
	api.Delete("/files/:id", files.DeleteFile)
	api.Get("/files/:id/download", files.DownloadFile)
	api.Post("/files/:id/convert", files.ConvertFile)
	api.Get("/files/:id/objects", files.ListObjects)
	api.Put("/files/:id/objects", files.RenameObjects)

	// decode must precede :id
	api.Get("/markers/decode", markers.DecodeMarker)
	api.Post("/markers", markers.CreateMarker)
	api.Get("/markers", markers.ListMarkers)
	api.Get("/markers/:id", markers.GetMarker)
	api.Delete("/markers/:id", markers.DeleteMarker)

	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
}
