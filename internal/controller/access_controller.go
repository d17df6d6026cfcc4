package controller

import (
	"clinedit-collab/internal/pkg/serverutils"
	"clinedit-collab/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAccessController interface {
	RegisterRoutes(r fiber.Router)
	CheckAccess(ctx *fiber.Ctx) error
}

type accessController struct {
	service service.IAccessService
}

func NewAccessController(svc service.IAccessService) IAccessController {
	return &accessController{service: svc}
}

func (c *accessController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/documents")
	h.Get("/:documentId/access", c.CheckAccess)
}

// CheckAccess validates a share token for a shared document view. The
// editor calls this before opening the comment channel.
func (c *accessController) CheckAccess(ctx *fiber.Ctx) error {
	documentId := ctx.Params("documentId")
	shareToken := ctx.Query("share_token", "")

	if shareToken == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "share_token parameter is required"))
	}

	if err := c.service.CheckAccess(documentId, shareToken); err != nil {
		return ctx.Status(fiber.StatusForbidden).JSON(serverutils.ErrorResponse(403, err.Error()))
	}

	return ctx.JSON(fiber.Map{
		"document_id": documentId,
		"access":      "comment",
	})
}
