package possessions

import (
	"estate-backend/internal/constants"
	"estate-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Register mounts the possession endpoints on r (normally /api/v1/possessions).
// Handover-specific checks inside Transition, BulkTransition and UploadAttachment sit on top of these.
func Register(r fiber.Router, h *Handlers) {
	view := middleware.AuthorizePermission(constants.ViewPossessions)
	manage := middleware.AuthorizePermission(constants.ManagePossessions)
	handover := middleware.AuthorizePermission(constants.HandoverPossessions)
	remove := middleware.AuthorizePermission(constants.RemovePossessions)

	g := r.Group("", middleware.RequireAuth())
	g.Post("/create-possession", manage, h.CreatePossession)
	g.Get("/view-possession/:id", view, h.ViewPossession)
	g.Get("/view-by-code/:code", view, h.ViewByCode)
	g.Get("/list-possessions", view, h.ListPossessions)
	g.Patch("/transition/:id", manage, h.Transition)
	g.Get("/allowed-transitions/:id", view, h.AllowedTransitions)
	g.Patch("/collector/:id", manage, h.UpdateCollector)
	g.Post("/bulk-transition", manage, h.BulkTransition)
	g.Get("/validate-handover/:id", view, h.ValidateHandover)
	g.Post("/attachments/:id", manage, h.UploadAttachment)
	g.Post("/certificate/:id", handover, h.GenerateCertificate)
	g.Delete("/remove/:id", remove, h.RemovePossession)

	g.Get("/timeline/:id", view, h.Timeline)
	g.Get("/statistics", view, h.Statistics)
	g.Get("/nearby", view, h.Nearby)
	g.Get("/overdue", view, h.Overdue)
	g.Get("/report", view, h.Report)
}
