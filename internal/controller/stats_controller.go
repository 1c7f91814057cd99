package controller

import (
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

const defaultQueryStatsLimit = 50

type IStatsController interface {
	RegisterRoutes(r fiber.Router)
	Queries(ctx *fiber.Ctx) error
	Coverage(ctx *fiber.Ctx) error
	Table(ctx *fiber.Ctx) error
	Cache(ctx *fiber.Ctx) error
	Lexical(ctx *fiber.Ctx) error
}

type statsController struct {
	service service.IStatsService
}

func NewStatsController(service service.IStatsService) IStatsController {
	return &statsController{service: service}
}

func (c *statsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/stats")
	h.Get("/queries", c.Queries)
	h.Get("/coverage", c.Coverage)
	h.Get("/table", c.Table)
	h.Get("/cache", c.Cache)
	h.Get("/lexical", c.Lexical)
}

func (c *statsController) Queries(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", defaultQueryStatsLimit)
	return ctx.JSON(serverutils.SuccessResponse("Success get query stats", c.service.Queries(limit)))
}

func (c *statsController) Coverage(ctx *fiber.Ctx) error {
	res, err := c.service.Coverage(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get embedding coverage", res))
}

func (c *statsController) Table(ctx *fiber.Ctx) error {
	res, err := c.service.Table(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get table stats", res))
}

func (c *statsController) Cache(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get cache stats", c.service.Cache()))
}

func (c *statsController) Lexical(ctx *fiber.Ctx) error {
	res, err := c.service.Lexical(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get lexical index stats", res))
}
