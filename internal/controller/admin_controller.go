package controller

import (
	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	Backfill(ctx *fiber.Ctx) error
	RefreshIndices(ctx *fiber.Ctx) error
}

type adminController struct {
	service service.IAdminService
}

func NewAdminController(service service.IAdminService) IAdminController {
	return &adminController{service: service}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(serverutils.AdminOnly())
	h.Post("/vectorizer/backfill", c.Backfill)
	h.Post("/refresh-indices", c.RefreshIndices)
}

func (c *adminController) Backfill(ctx *fiber.Ctx) error {
	var req dto.BackfillRequest
	// empty body means defaults
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Backfill(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success backfill embeddings", res))
}

func (c *adminController) RefreshIndices(ctx *fiber.Ctx) error {
	res, err := c.service.RefreshIndices(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}
