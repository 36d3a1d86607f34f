// Package app wires repositories, services and handlers into a Fiber app.
package app

import (
	"time"

	"toko-orders/internal/handlers"
	"toko-orders/internal/idempotency"
	"toko-orders/internal/logger"
	"toko-orders/internal/middleware"
	"toko-orders/internal/repositories"
	"toko-orders/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP surface is built from.
// Publisher may be nil when no broker is configured.
type Deps struct {
	Products    repositories.ProductRepository
	Orders      repositories.OrderRepository
	Users       repositories.UserRepository
	Idempotency idempotency.Cache
	Publisher   services.EventPublisher
	Limiter     *middleware.RateLimiter
	Retry       services.RetryPolicy
	JWTSecret   string
	Log         *zap.Logger
}

// Services are exposed for seeding and tests.
type Services struct {
	Products *services.ProductService
	Orders   *services.OrderService
	Auth     *services.AuthService
}

// New builds the Fiber app with every route under /api/v1.
func New(d Deps) (*fiber.App, *Services) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	svc := &Services{
		Products: services.NewProductService(d.Products),
		Orders:   services.NewOrderService(d.Orders, d.Products, d.Idempotency, d.Publisher, d.Retry, log.Named("orders")),
		Auth:     services.NewAuthService(d.Users, d.JWTSecret),
	}

	app := fiber.New(fiber.Config{
		AppName:      "toko-orders",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{ContextKey: logger.RequestIDKey}))
	app.Use(logger.Middleware(log.Named("http")))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"broker": d.Publisher != nil,
		})
	})

	authRequired := middleware.AuthRequired(svc.Auth, log)
	placeLimit := func(c *fiber.Ctx) error { return c.Next() }
	if d.Limiter != nil {
		placeLimit = d.Limiter.Handler()
	}

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(svc.Auth, log).RegisterRoutes(apiV1)
	handlers.NewProductHandler(svc.Products, log).RegisterRoutes(apiV1, authRequired)
	handlers.NewOrderHandler(svc.Orders, log).RegisterRoutes(apiV1, authRequired, placeLimit)

	return app, svc
}
