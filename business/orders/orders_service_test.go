package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"digitalMenu/business/cart"
	"digitalMenu/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  uint64
	headers map[uint64]domain.Order
	lines   map[uint64][]domain.OrderLine

	failLines   error
	failVerify  error
	failEnrich  error
	failDelete  error
	deleteCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{headers: map[uint64]domain.Order{}, lines: map[uint64][]domain.OrderLine{}}
}

func (f *fakeStore) InsertHeader(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	order.DisplayNumber = int64(f.nextID)
	f.headers[order.ID] = *order
	return nil
}

func (f *fakeStore) FindHeader(_ context.Context, id uint64) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failVerify != nil {
		return domain.Order{}, f.failVerify
	}
	o, ok := f.headers[id]
	if !ok {
		return domain.Order{}, domain.NewError(domain.CodeNotFound, "order %d not found", id)
	}
	return o, nil
}

func (f *fakeStore) InsertLines(_ context.Context, orderID uint64, lines []domain.OrderLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLines != nil {
		return f.failLines
	}
	f.lines[orderID] = append([]domain.OrderLine(nil), lines...)
	return nil
}

func (f *fakeStore) DeleteHeader(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.headers, id)
	return nil
}

func (f *fakeStore) FindWithLines(_ context.Context, id uint64) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnrich != nil {
		return domain.Order{}, f.failEnrich
	}
	o, ok := f.headers[id]
	if !ok {
		return domain.Order{}, domain.NewError(domain.CodeNotFound, "order %d not found", id)
	}
	o.Lines = f.lines[id]
	return o, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uint64, from, to domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.headers[id]
	if o.Status != from {
		return domain.NewError(domain.CodeInvalidTransition, "order %d changed concurrently", id)
	}
	o.Status = to
	f.headers[id] = o
	return nil
}

func (f *fakeStore) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.headers {
		if filter.UserID != nil && (o.UserID == nil || *o.UserID != *filter.UserID) {
			continue
		}
		if filter.TableID != nil && (o.TableID == nil || *o.TableID != *filter.TableID) {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) setStatus(id uint64, status domain.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.headers[id]
	o.Status = status
	f.headers[id] = o
}

type stubComposer struct{}

// Compose prices every item at 10.00 so tests do not depend on the catalogue.
func (stubComposer) Compose(_ context.Context, p domain.Principal, req domain.OrderRequest) (domain.Order, error) {
	if len(req.Items) == 0 {
		return domain.Order{}, domain.NewError(domain.CodeValidation, "an order needs at least one item")
	}
	o := domain.Order{Kind: req.Kind, Status: domain.OrderPending, PaymentStatus: domain.PaymentPending}
	if p.TableID != nil {
		id := *p.TableID
		o.TableID = &id
	}
	if p.UserID != nil {
		id := *p.UserID
		o.UserID = &id
	}
	for _, item := range req.Items {
		o.Lines = append(o.Lines, domain.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: decimal.RequireFromString("10.00")})
	}
	o.ApplyTotals()
	return o, nil
}

type fakeTables struct {
	occupied []uint
	inactive map[uint]bool
	occupyErr error
}

func (f *fakeTables) AcceptsOrders(_ context.Context, tableID uint) error {
	if f.inactive[tableID] {
		return domain.NewError(domain.CodeValidation, "table %d is not taking orders", tableID)
	}
	return nil
}

func (f *fakeTables) MarkOccupied(_ context.Context, tableID uint) error {
	if f.occupyErr != nil {
		return f.occupyErr
	}
	f.occupied = append(f.occupied, tableID)
	return nil
}

type recordingPublisher struct {
	events []domain.LifecycleEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e domain.LifecycleEvent) error {
	r.events = append(r.events, e)
	return r.err
}

type memoryCarts struct {
	blobs map[string][]byte
}

func (m *memoryCarts) Load(_ context.Context, key string) ([]byte, error) { return m.blobs[key], nil }
func (m *memoryCarts) Save(_ context.Context, key string, data []byte) error {
	m.blobs[key] = data
	return nil
}
func (m *memoryCarts) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

type harness struct {
	svc    *OrdersService
	store  *fakeStore
	tables *fakeTables
	events *recordingPublisher
	carts  *memoryCarts
}

func newHarness() harness {
	h := harness{
		store:  newFakeStore(),
		tables: &fakeTables{inactive: map[uint]bool{}},
		events: &recordingPublisher{},
		carts:  &memoryCarts{blobs: map[string][]byte{}},
	}
	h.svc = NewOrdersService(h.store, stubComposer{}, h.tables, h.events, cart.NewService(h.carts, nil))
	return h
}

var (
	customer = domain.UserPrincipal(7, domain.RoleCustomer)
	other    = domain.UserPrincipal(8, domain.RoleCustomer)
	manager  = domain.UserPrincipal(1, domain.RoleManager)
)

func takeout(items ...domain.ItemRequest) domain.OrderRequest {
	if len(items) == 0 {
		items = []domain.ItemRequest{{ProductID: 1, Quantity: 2}}
	}
	return domain.OrderRequest{Kind: domain.KindTakeout, Items: items}
}

func TestCreatePersistsHeaderAndLines(t *testing.T) {
	h := newHarness()

	order, err := h.svc.Create(context.Background(), customer, takeout())
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, order.ID, order.Lines[0].OrderID)
	assert.True(t, decimal.RequireFromString("22.00").Equal(order.Total))

	require.Len(t, h.events.events, 1)
	assert.Equal(t, domain.EventOrderCreated, h.events.events[0].Type)
	assert.Empty(t, h.tables.occupied)
}

func TestCreateRollsBackHeaderWhenLinesFail(t *testing.T) {
	h := newHarness()
	h.store.failLines = errors.New("insert order_lines: deadlock")

	_, err := h.svc.Create(context.Background(), customer, takeout())

	require.True(t, errors.Is(err, domain.ErrUpstreamFailure))
	assert.Contains(t, err.Error(), "deadlock")
	assert.Equal(t, 1, h.store.deleteCalls)
	assert.Empty(t, h.store.headers)
	assert.Empty(t, h.events.events)
}

func TestCreateVerifyFailure(t *testing.T) {
	h := newHarness()
	h.store.failVerify = errors.New("replica lag")

	_, err := h.svc.Create(context.Background(), customer, takeout())

	require.True(t, errors.Is(err, domain.ErrOrderPersistenceFailure))
	var coded *domain.Error
	require.True(t, errors.As(err, &coded))
	assert.True(t, coded.Retryable())
	assert.Empty(t, h.store.lines)
}

func TestCreateDegradesWhenEnrichmentFails(t *testing.T) {
	h := newHarness()
	h.store.failEnrich = errors.New("join timed out")

	order, err := h.svc.Create(context.Background(), customer, takeout())
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.NotNil(t, order.Lines)
	assert.Empty(t, order.Lines)
	assert.Len(t, h.store.lines[order.ID], 1)
}

func TestCreateAnonymousTableOrder(t *testing.T) {
	h := newHarness()
	table := domain.TablePrincipal(4, nil)

	order, err := h.svc.Create(context.Background(), table, domain.OrderRequest{
		Kind:  domain.KindDineIn,
		Items: []domain.ItemRequest{{ProductID: 3, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Nil(t, order.UserID)
	require.NotNil(t, order.TableID)
	assert.Equal(t, uint(4), *order.TableID)
	assert.Equal(t, []uint{4}, h.tables.occupied)

	fetched, err := h.svc.Get(context.Background(), table, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)

	listed, err := h.svc.List(context.Background(), table, domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestCreateSurvivesOccupyAndPublishFailures(t *testing.T) {
	h := newHarness()
	h.tables.occupyErr = errors.New("tables locked")
	h.events.err = errors.New("broker down")

	_, err := h.svc.Create(context.Background(), domain.TablePrincipal(2, nil), domain.OrderRequest{
		Kind:  domain.KindDineIn,
		Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}},
	})
	assert.NoError(t, err)
}

func TestCreateRejectsInactiveTable(t *testing.T) {
	h := newHarness()
	h.tables.inactive[9] = true

	_, err := h.svc.Create(context.Background(), domain.TablePrincipal(9, nil), domain.OrderRequest{
		Kind:  domain.KindDineIn,
		Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}},
	})

	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Empty(t, h.store.headers)
}

func TestCreateRequiresIdentity(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Create(context.Background(), domain.Principal{}, takeout())
	assert.True(t, errors.Is(err, domain.ErrAuthenticationRequired))
}

func TestCancelPendingOrder(t *testing.T) {
	h := newHarness()
	order, err := h.svc.Create(context.Background(), customer, takeout())
	require.NoError(t, err)

	canceled, err := h.svc.Cancel(context.Background(), customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCanceled, canceled.Status)
}

func TestCancelReadyOrderIsInvalidTransition(t *testing.T) {
	h := newHarness()
	order, err := h.svc.Create(context.Background(), customer, takeout())
	require.NoError(t, err)
	h.store.setStatus(order.ID, domain.OrderReady)

	_, err = h.svc.Cancel(context.Background(), customer, order.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, domain.OrderReady, h.store.headers[order.ID].Status)
}

func TestCancelOrderOnClosedAccount(t *testing.T) {
	h := newHarness()
	order, err := h.svc.Create(context.Background(), customer, takeout())
	require.NoError(t, err)

	accountID := uint64(5)
	h.store.mu.Lock()
	o := h.store.headers[order.ID]
	o.AccountID = &accountID
	h.store.headers[order.ID] = o
	h.store.mu.Unlock()

	_, err = h.svc.Cancel(context.Background(), manager, order.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, domain.OrderPending, h.store.headers[order.ID].Status)
}

func TestCancelSomeoneElsesOrderIsForbidden(t *testing.T) {
	h := newHarness()
	order, err := h.svc.Create(context.Background(), customer, takeout())
	require.NoError(t, err)

	_, err = h.svc.Cancel(context.Background(), other, order.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Equal(t, domain.OrderPending, h.store.headers[order.ID].Status)

	_, err = h.svc.Cancel(context.Background(), manager, order.ID)
	assert.NoError(t, err)
}

func TestUpdateStatusManagerOnly(t *testing.T) {
	h := newHarness()
	order, err := h.svc.Create(context.Background(), customer, takeout())
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(context.Background(), customer, order.ID, domain.OrderConfirmed)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	updated, err := h.svc.UpdateStatus(context.Background(), manager, order.ID, domain.OrderConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, updated.Status)
	assert.Equal(t, domain.EventOrderStatusChanged, h.events.events[len(h.events.events)-1].Type)

	_, err = h.svc.UpdateStatus(context.Background(), manager, order.ID, domain.OrderDelivered)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = h.svc.UpdateStatus(context.Background(), manager, order.ID, "lost")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestListScopesByRole(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.Create(ctx, customer, takeout())
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, other, takeout())
	require.NoError(t, err)

	mine, err := h.svc.List(ctx, customer, domain.OrderFilter{UserID: other.UserID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, *customer.UserID, *mine[0].UserID)

	all, err := h.svc.List(ctx, manager, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Greater(t, all[0].ID, all[1].ID)

	// newest first: the second order belongs to the other customer
	_, err = h.svc.Get(ctx, customer, all[0].ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestPlaceFromCartClearsCart(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sess := domain.Session{Principal: customer, CartKey: domain.CartKeyFor(customer, "")}
	h.carts.blobs[sess.CartKey] = []byte(`[{"product_id":5,"quantity":2,"name":"Fries","unit_price":"4.00"}]`)

	order, err := h.svc.PlaceFromCart(ctx, sess, domain.OrderRequest{Kind: domain.KindTakeout})
	require.NoError(t, err)

	require.Len(t, order.Lines, 1)
	assert.Equal(t, uint64(5), order.Lines[0].ProductID)
	assert.NotContains(t, h.carts.blobs, sess.CartKey)
}

func TestPlaceFromCartKeepsCartOnFailure(t *testing.T) {
	h := newHarness()
	h.store.failLines = errors.New("boom")
	sess := domain.Session{Principal: customer, CartKey: domain.CartKeyFor(customer, "")}
	h.carts.blobs[sess.CartKey] = []byte(`[{"product_id":5,"quantity":2}]`)

	_, err := h.svc.PlaceFromCart(context.Background(), sess, domain.OrderRequest{Kind: domain.KindTakeout})
	require.Error(t, err)
	assert.Contains(t, h.carts.blobs, sess.CartKey)
}

func TestPlaceFromEmptyCart(t *testing.T) {
	h := newHarness()
	sess := domain.Session{Principal: customer, CartKey: domain.CartKeyFor(customer, "")}

	_, err := h.svc.PlaceFromCart(context.Background(), sess, domain.OrderRequest{Kind: domain.KindTakeout})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
