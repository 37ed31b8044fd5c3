package orders

import (
	"context"
	"time"

	"digitalMenu/business/cart"
	"digitalMenu/business/policy"
	"digitalMenu/domain"
	"digitalMenu/pkg/logger"
	"digitalMenu/pkg/metrics"

	"github.com/google/uuid"
)

// OrderStore is the persistence the order service needs. Create is split into
// its steps so the service can verify and compensate between them.
type OrderStore interface {
	InsertHeader(ctx context.Context, order *domain.Order) error
	FindHeader(ctx context.Context, id uint64) (domain.Order, error)
	InsertLines(ctx context.Context, orderID uint64, lines []domain.OrderLine) error
	DeleteHeader(ctx context.Context, id uint64) error
	FindWithLines(ctx context.Context, id uint64) (domain.Order, error)
	UpdateStatus(ctx context.Context, id uint64, from, to domain.OrderStatus) error
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}

type Composer interface {
	Compose(ctx context.Context, principal domain.Principal, req domain.OrderRequest) (domain.Order, error)
}

// TableGate lets the order flow check and occupy the ordering table.
type TableGate interface {
	AcceptsOrders(ctx context.Context, tableID uint) error
	MarkOccupied(ctx context.Context, tableID uint) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
}

type CartOpener interface {
	Open(ctx context.Context, sess domain.Session) (*cart.Store, error)
}

type OrdersService struct {
	store    OrderStore
	composer Composer
	policy   policy.Policy
	tables   TableGate
	events   EventPublisher
	carts    CartOpener
}

func NewOrdersService(store OrderStore, composer Composer, tables TableGate, events EventPublisher, carts CartOpener) *OrdersService {
	return &OrdersService{
		store:    store,
		composer: composer,
		policy:   policy.New(),
		tables:   tables,
		events:   events,
		carts:    carts,
	}
}

// Create prices the request against the catalogue and persists it for the principal.
func (s *OrdersService) Create(ctx context.Context, principal domain.Principal, req domain.OrderRequest) (domain.Order, error) {
	if err := s.policy.RequireIdentity(principal); err != nil {
		return domain.Order{}, err
	}

	if principal.IsTableSession() {
		if err := s.tables.AcceptsOrders(ctx, *principal.TableID); err != nil {
			return domain.Order{}, err
		}
	} else if req.Kind != domain.KindDineIn {
		if err := s.policy.RequireAuthenticatedUser(principal); err != nil {
			return domain.Order{}, err
		}
	}

	draft, err := s.composer.Compose(ctx, principal, req)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.persist(ctx, draft)
	if err != nil {
		return domain.Order{}, err
	}

	s.afterCreate(ctx, principal, order)
	return order, nil
}

// PlaceFromCart checks out the session cart; req supplies kind, note and fee and
// its items are replaced by the cart lines. The cart is cleared only once the
// order exists; a failed clear leaves the order in place and is logged.
func (s *OrdersService) PlaceFromCart(ctx context.Context, sess domain.Session, req domain.OrderRequest) (domain.Order, error) {
	store, err := s.carts.Open(ctx, sess)
	if err != nil {
		return domain.Order{}, err
	}
	if store.IsEmpty() {
		return domain.Order{}, domain.NewError(domain.CodeValidation, "the cart is empty")
	}

	req.Items = store.Lines()

	order, err := s.Create(ctx, sess.Principal, req)
	if err != nil {
		return domain.Order{}, err
	}

	if err := store.Clear(ctx); err != nil {
		logger.Warn("Failed to clear cart after checkout", "cart", store.Key(), "order_id", order.ID, "error", err)
	}
	return order, nil
}

// persist writes header then lines. The header is re-read before lines go in,
// and removed again if the line batch fails.
func (s *OrdersService) persist(ctx context.Context, draft domain.Order) (domain.Order, error) {
	if !draft.HasOwner() {
		return domain.Order{}, domain.NewError(domain.CodeValidation, "an order needs a user or a table")
	}

	lines := draft.Lines
	header := draft
	header.Lines = nil
	header.Status = domain.OrderPending
	header.PaymentStatus = domain.PaymentPending

	if err := s.store.InsertHeader(ctx, &header); err != nil {
		logger.Error("Failed to insert order header", "error", err)
		return domain.Order{}, domain.Upstream(err, "create order")
	}

	stored, err := s.store.FindHeader(ctx, header.ID)
	if err != nil || stored.ID == 0 {
		logger.Error("Order header not readable after insert", "order_id", header.ID, "error", err)
		if delErr := s.store.DeleteHeader(ctx, header.ID); delErr != nil {
			logger.Warn("Failed to remove unverified order header", "order_id", header.ID, "error", delErr)
		}
		return domain.Order{}, domain.WrapError(domain.CodeOrderPersistenceFailure, err,
			"order could not be confirmed after saving; nothing was charged, safe to retry")
	}

	for i := range lines {
		lines[i].OrderID = stored.ID
	}

	if err := s.store.InsertLines(ctx, stored.ID, lines); err != nil {
		logger.Error("Failed to insert order lines", "order_id", stored.ID, "error", err)
		if delErr := s.store.DeleteHeader(ctx, stored.ID); delErr != nil {
			metrics.OrderRollbackFailures.Inc()
			logger.Error("Failed to roll back order header", "order_id", stored.ID, "error", delErr)
		} else {
			metrics.OrderRollbacks.Inc()
		}
		return domain.Order{}, domain.Upstream(err, "save order items")
	}

	full, err := s.store.FindWithLines(ctx, stored.ID)
	if err != nil {
		metrics.OrderEnrichmentDegraded.Inc()
		logger.Warn("Returning order without lines, read-back failed", "order_id", stored.ID, "error", err)
		stored.Lines = []domain.OrderLine{}
		return stored, nil
	}

	return full, nil
}

func (s *OrdersService) afterCreate(ctx context.Context, principal domain.Principal, order domain.Order) {
	channel := "user"
	if order.TableID != nil {
		channel = "table"
		if err := s.tables.MarkOccupied(ctx, *order.TableID); err != nil {
			logger.Warn("Failed to mark table occupied", "table_id", *order.TableID, "order_id", order.ID, "error", err)
		}
	}
	metrics.OrdersCreated.WithLabelValues(string(order.Kind), channel).Inc()

	logger.Info("Order created", "order_id", order.ID, "display_number", order.DisplayNumber, "principal", principal.String(), "total", order.Total.StringFixed(2))
	s.publish(ctx, domain.EventOrderCreated, order)
}

func (s *OrdersService) Get(ctx context.Context, principal domain.Principal, id uint64) (domain.Order, error) {
	if err := s.policy.RequireIdentity(principal); err != nil {
		return domain.Order{}, err
	}

	order, err := s.store.FindWithLines(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.policy.CanView(principal, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// List applies the principal's scope over the caller's filter; scope fields always win.
func (s *OrdersService) List(ctx context.Context, principal domain.Principal, filter domain.OrderFilter) ([]domain.Order, error) {
	scope, err := s.policy.ListScope(principal)
	if err != nil {
		return nil, err
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewError(domain.CodeValidation, "unknown order status %q", filter.Status)
	}

	filter.WithParties = scope.WithParties
	if !principal.IsManager() {
		filter.UserID = scope.UserID
		filter.TableID = scope.TableID
		filter.AccountID = nil
	}
	if scope.UnpaidOnly {
		filter.PaymentStatus = domain.PaymentPending
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}

	return s.store.List(ctx, filter)
}

// UpdateStatus is the manager-driven fulfillment step.
func (s *OrdersService) UpdateStatus(ctx context.Context, principal domain.Principal, id uint64, status domain.OrderStatus) (domain.Order, error) {
	if err := s.policy.RequireManager(principal); err != nil {
		return domain.Order{}, err
	}
	if !status.Valid() {
		return domain.Order{}, domain.NewError(domain.CodeValidation, "unknown order status %q", status)
	}

	order, err := s.store.FindHeader(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return s.transition(ctx, order, status)
}

// Cancel is open to the owner and to managers, only while the kitchen has not started.
func (s *OrdersService) Cancel(ctx context.Context, principal domain.Principal, id uint64) (domain.Order, error) {
	if err := s.policy.RequireIdentity(principal); err != nil {
		return domain.Order{}, err
	}

	order, err := s.store.FindHeader(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.policy.CanCancel(principal, order); err != nil {
		return domain.Order{}, err
	}
	if !order.Status.Cancelable() {
		return domain.Order{}, domain.NewError(domain.CodeInvalidTransition, "order %d is %s and can no longer be canceled", order.ID, order.Status)
	}

	return s.transition(ctx, order, domain.OrderCanceled)
}

func (s *OrdersService) transition(ctx context.Context, order domain.Order, to domain.OrderStatus) (domain.Order, error) {
	if !domain.CanTransitionOrder(order.Kind, order.Status, to) {
		return domain.Order{}, domain.NewError(domain.CodeInvalidTransition, "order %d cannot move from %s to %s", order.ID, order.Status, to)
	}
	if to == domain.OrderCanceled && order.AccountID != nil {
		return domain.Order{}, domain.NewError(domain.CodeInvalidTransition, "order %d is on closed account %d; cancel the account first", order.ID, *order.AccountID)
	}

	if err := s.store.UpdateStatus(ctx, order.ID, order.Status, to); err != nil {
		return domain.Order{}, err
	}
	metrics.OrderStatusTransitions.WithLabelValues(string(to)).Inc()

	updated, err := s.store.FindWithLines(ctx, order.ID)
	if err != nil {
		logger.Warn("Status updated but read-back failed", "order_id", order.ID, "error", err)
		order.Status = to
		order.UpdatedAt = time.Now()
		updated = order
	}

	s.publish(ctx, domain.EventOrderStatusChanged, updated)
	return updated, nil
}

func (s *OrdersService) publish(ctx context.Context, eventType string, order domain.Order) {
	if s.events == nil {
		return
	}
	event := domain.LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    order.ID,
		TableID:    order.TableID,
		Kind:       order.Kind,
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish order event", "type", eventType, "order_id", order.ID, "error", err)
	}
}
