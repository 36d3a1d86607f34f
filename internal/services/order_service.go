package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/idempotency"
	"toko-orders/internal/models"
	"toko-orders/internal/repositories"
	"toko-orders/pkg/rabbitmq"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher is the part of the broker client the services need.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// RetryPolicy bounds automatic retries of transient commit failures.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// PlaceOrderRequest is validated input from the transport layer.
type PlaceOrderRequest struct {
	BuyerID          string
	Items            []models.ItemRequest
	IdempotencyToken string
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	idem        idempotency.Cache
	publisher   EventPublisher
	retry       RetryPolicy
	log         *zap.Logger
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	idem idempotency.Cache,
	publisher EventPublisher,
	retry RetryPolicy,
	log *zap.Logger,
) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		idem:        idem,
		publisher:   publisher,
		retry:       retry,
		log:         log,
	}
}

// PlaceOrder validates, prices and commits an order. A repeated token inside
// the suppression window returns the original order and replayed=true.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (order *models.Order, replayed bool, err error) {
	if req.BuyerID == "" {
		return nil, false, apperrors.Validation("buyer_id", "is required")
	}
	log := s.log.With(zap.String("buyer_id", req.BuyerID))

	ticket, err := s.idem.Begin(ctx, idempotency.Key{BuyerID: req.BuyerID, Token: req.IdempotencyToken})
	if err != nil {
		return nil, false, fmt.Errorf("idempotency check: %w", err)
	}

	if ticket.Duplicate {
		order, err := s.orderRepo.GetByID(ctx, ticket.OrderID, models.OwnerScope(req.BuyerID))
		if err != nil {
			return nil, false, fmt.Errorf("load replayed order %s: %w", ticket.OrderID, err)
		}
		log.Info("replayed duplicate order submission", zap.String("order_id", order.ID))
		return order, true, nil
	}

	// the claim must be settled even if the caller went away
	settleCtx := context.WithoutCancel(ctx)

	order, err = s.placeWithRetry(ctx, req)
	if err != nil {
		if abortErr := s.idem.Abort(settleCtx, ticket); abortErr != nil {
			log.Warn("failed to release idempotency claim", zap.Error(abortErr))
		}
		return nil, false, err
	}

	if err := s.idem.Complete(settleCtx, ticket, order.ID); err != nil {
		log.Warn("failed to record idempotency key", zap.String("order_id", order.ID), zap.Error(err))
	}

	log.Info("order placed", zap.String("order_id", order.ID), zap.Int64("total", order.Total), zap.Int("lines", len(order.Items)))
	s.publish(models.EventOrderCreated, models.OrderCreatedPayload{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Total:   order.Total,
		Items:   order.Items,
	})
	return order, false, nil
}

func (s *OrderService) placeWithRetry(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := s.placeOnce(ctx, req)
		if err == nil || !apperrors.IsRetryable(err) || attempt >= s.retry.MaxRetries {
			return order, err
		}

		delay := backoff(s.retry.Backoff, attempt)
		s.log.Warn("retrying order commit",
			zap.String("buyer_id", req.BuyerID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// placeOnce re-reads the catalog on every attempt; the commit re-checks stock anyway.
func (s *OrderService) placeOnce(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}

	catalog, err := s.productRepo.ResolveActive(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines, total, err := PriceOrder(req.Items, catalog)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		BuyerID: req.BuyerID,
		Status:  models.StatusPending,
		Total:   total,
		Items:   lines,
	}
	if err := s.orderRepo.Commit(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// backoff doubles base per attempt and adds up to 50% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	exp := base << attempt
	return exp + time.Duration(rand.Int63n(int64(exp/2)+1))
}

// SetStatus sets any of the known statuses; there is no transition graph.
func (s *OrderService) SetStatus(ctx context.Context, id, status string) (*models.Order, error) {
	st, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, apperrors.Validation("status", "%v", err)
	}

	order, err := s.orderRepo.UpdateStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}

	s.log.Info("order status updated", zap.String("order_id", id), zap.String("status", string(st)))
	s.publish(models.EventOrderStatusUpdated, models.OrderStatusPayload{OrderID: id, Status: st})
	return order, nil
}

// ListOrders returns one page of orders visible to scope.
func (s *OrderService) ListOrders(ctx context.Context, page models.Pagination, scope models.Scope) (models.OrderPage, error) {
	if page.Page < 1 {
		return models.OrderPage{}, apperrors.Validation("page", "must be at least 1, got %d", page.Page)
	}
	if page.Limit < 1 || page.Limit > models.MaxPageLimit {
		return models.OrderPage{}, apperrors.Validation("limit", "must be between 1 and %d, got %d", models.MaxPageLimit, page.Limit)
	}
	return s.orderRepo.List(ctx, page, scope)
}

// GetOrder retrieves a single order visible to scope.
func (s *OrderService) GetOrder(ctx context.Context, id string, scope models.Scope) (*models.Order, error) {
	return s.orderRepo.GetByID(ctx, id, scope)
}

// publish sends an event without failing the caller; the order is already committed.
func (s *OrderService) publish(eventType string, payload any) {
	if s.publisher == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	envelope, err := json.Marshal(models.EventEnvelope{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	})
	if err != nil {
		s.log.Error("failed to marshal event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	if err := s.publisher.Publish(rabbitmq.OrdersExchange, eventType, envelope); err != nil {
		s.log.Warn("failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}
