package controller

import (
	"errors"

	"review-rag-be/internal/dto"
	"review-rag-be/internal/pkg/serverutils"
	"review-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IIngestController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Enqueue(ctx *fiber.Ctx) error
	RunSync(ctx *fiber.Ctx) error
	GetJob(ctx *fiber.Ctx) error
}

type ingestController struct {
	service service.IIngestionJobService
}

func NewIngestController(service service.IIngestionJobService) IIngestController {
	return &ingestController{service: service}
}

func (c *ingestController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/ingest/v1")
	h.Use(auth)
	h.Post("", c.Enqueue)
	h.Post("/sync", c.RunSync)
	h.Get("/jobs/:id", c.GetJob)
}

func (c *ingestController) Enqueue(ctx *fiber.Ctx) error {
	res, err := c.service.Enqueue(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Ingestion job queued", res))
}

func (c *ingestController) RunSync(ctx *fiber.Ctx) error {
	var req dto.IngestRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := c.service.RunSync(ctx.UserContext(), req.LoadExisting)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success ingest reviews", res))
}

func (c *ingestController) GetJob(ctx *fiber.Ctx) error {
	res, err := c.service.GetJob(ctx.UserContext(), ctx.Params("id"))
	if errors.Is(err, service.ErrJobNotFound) {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, err.Error()))
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get ingestion job", res))
}
