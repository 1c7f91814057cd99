package controller

import (
	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultSearchLimit    = 20
	defaultDocTopK        = 3
	defaultDocTopSegments = 3
)

type ISearchController interface {
	RegisterRoutes(r fiber.Router)
	Browse(ctx *fiber.Ctx) error
	Hybrid(ctx *fiber.Ctx) error
	Documents(ctx *fiber.Ctx) error
}

type searchController struct {
	service service.ISearchService
}

func NewSearchController(service service.ISearchService) ISearchController {
	return &searchController{service: service}
}

func (c *searchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/search")
	h.Get("", c.Browse)
	h.Get("/hybrid", c.Hybrid)
	h.Get("/documents", c.Documents)
}

func (c *searchController) Browse(ctx *fiber.Ctx) error {
	req := dto.BrowseSearchRequest{Limit: defaultSearchLimit}
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Browse(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search segments", res))
}

func (c *searchController) Hybrid(ctx *fiber.Ctx) error {
	req := dto.HybridSearchRequest{Limit: defaultSearchLimit}
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Hybrid(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success hybrid search", res))
}

func (c *searchController) Documents(ctx *fiber.Ctx) error {
	req := dto.DocumentSearchRequest{
		HybridSearchRequest: dto.HybridSearchRequest{Limit: defaultSearchLimit},
		DocTopK:             defaultDocTopK,
		DocTopSegments:      defaultDocTopSegments,
	}
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Documents(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success document search", res))
}
