package handlers

import (
	"strconv"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/middleware"
	"toko-orders/internal/models"
	"toko-orders/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client's submission token.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from the idempotency cache.
	ReplayedHeader = "Idempotent-Replayed"
)

// CreateOrderRequest is the body of POST /orders. The buyer comes from the token.
type CreateOrderRequest struct {
	Items []models.ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateStatusRequest is the body of PATCH /orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	log      *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the order routes behind auth. placeLimit
// throttles order placement per caller.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth, placeLimit fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", placeLimit, h.HandleCreateOrder)
	orderRoutes.Patch("/:id/status", middleware.AdminOnly(), h.HandleUpdateOrderStatus)
}

// HandleGetOrders lists orders visible to the caller, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return respondError(c, h.log, "Invalid pagination", err)
	}

	result, err := h.service.ListOrders(c.UserContext(), page, middleware.CallerScope(c))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve orders", err)
	}
	return c.JSON(result)
}

// HandleGetOrderByID retrieves a single order visible to the caller.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"), middleware.CallerScope(c))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

// HandleCreateOrder places an order for the authenticated buyer.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	buyerID, _ := c.Locals(middleware.UserIDKey).(string)
	order, replayed, err := h.service.PlaceOrder(c.UserContext(), services.PlaceOrderRequest{
		BuyerID:          buyerID,
		Items:            req.Items,
		IdempotencyToken: utils.CopyString(c.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		return respondError(c, h.log, "Could not create order", err)
	}

	if replayed {
		c.Set(ReplayedHeader, "true")
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleUpdateOrderStatus sets the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	order, err := h.service.SetStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, h.log, "Could not update order status", err)
	}
	return c.JSON(order)
}

func parsePagination(c *fiber.Ctx) (models.Pagination, error) {
	page := models.Pagination{Page: 1, Limit: models.DefaultPageLimit}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, apperrors.Validation("page", "must be an integer")
		}
		page.Page = n
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, apperrors.Validation("limit", "must be an integer")
		}
		page.Limit = n
	}
	return page, nil
}
