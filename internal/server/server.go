package server

import (
	"context"

	"secondbrain-be/internal/bootstrap"
	"secondbrain-be/internal/config"
	"secondbrain-be/internal/pkg/metrics"
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/service"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serverModule = "Server"

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             4 * 1024 * 1024,
		DisableStartupMessage: cfg.IsProduction(),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())
	app.Use(metrics.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.container.Logger.Info(serverModule, "Server is running", map[string]interface{}{"port": s.cfg.App.Port})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	app.Get("/healthz", healthz(c.HealthService))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Use(serverutils.JwtMiddleware(cfg.Auth))

	c.ConversationController.RegisterRoutes(api)
	c.SearchController.RegisterRoutes(api)
	c.DocumentController.RegisterRoutes(api)
	c.StatsController.RegisterRoutes(api)
	c.AdminController.RegisterRoutes(api)

	c.ChatStreamHandler.RegisterRoutes(api)
}

func healthz(health service.IHealthService) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		report := health.Check(ctx.UserContext())
		if report.Status != service.HealthOK {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(report)
		}
		return ctx.JSON(report)
	}
}
