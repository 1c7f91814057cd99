package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func paramUUID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name+".")
	}
	return id, nil
}
