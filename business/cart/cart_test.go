package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"digitalMenu/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saves   int
	failErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{blobs: make(map[string][]byte)}
}

func (m *memoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[key], nil
}

func (m *memoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func product(id uint64, price string) domain.Product {
	return domain.Product{ID: id, Name: "item", Price: decimal.RequireFromString(price), Available: true}
}

func openStore(t *testing.T, storage Storage) *Store {
	t.Helper()
	s, err := Open(context.Background(), storage, "cart:user:1")
	require.NoError(t, err)
	return s
}

func TestAddMergesQuantities(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemoryStorage())

	require.NoError(t, s.Add(ctx, product(1, "10.00"), 1, ""))
	require.NoError(t, s.Add(ctx, product(1, "10.00"), 2, ""))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 3, s.Count())
}

func TestAddOverwritesNoteOnlyWhenProvided(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemoryStorage())

	require.NoError(t, s.Add(ctx, product(1, "10.00"), 1, "no onions"))
	require.NoError(t, s.Add(ctx, product(1, "10.00"), 1, ""))
	assert.Equal(t, "no onions", s.Items()[0].Note)

	require.NoError(t, s.Add(ctx, product(1, "10.00"), 1, "extra cheese"))
	assert.Equal(t, "extra cheese", s.Items()[0].Note)
}

func TestSetQuantityZeroOrNegativeRemoves(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemoryStorage())

	require.NoError(t, s.Add(ctx, product(1, "10.00"), 2, ""))
	require.NoError(t, s.Add(ctx, product(2, "5.00"), 1, ""))

	require.NoError(t, s.SetQuantity(ctx, 1, 0))
	require.NoError(t, s.SetQuantity(ctx, 2, -1))

	assert.Empty(t, s.Items())
	assert.True(t, s.IsEmpty())
}

func TestSetQuantityUnknownProduct(t *testing.T) {
	s := openStore(t, newMemoryStorage())

	err := s.SetQuantity(context.Background(), 99, 2)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSubtotalUsesLastKnownPrices(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemoryStorage())

	require.NoError(t, s.Add(ctx, product(1, "12.50"), 2, ""))
	require.NoError(t, s.Add(ctx, product(2, "3.10"), 3, ""))

	assert.True(t, decimal.RequireFromString("34.30").Equal(s.Subtotal()))
}

func TestEveryMutationPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	storage := newMemoryStorage()
	s := openStore(t, storage)

	require.NoError(t, s.Add(ctx, product(1, "10.00"), 1, "rare"))
	require.NoError(t, s.Add(ctx, product(2, "4.00"), 2, ""))
	require.NoError(t, s.SetQuantity(ctx, 2, 5))
	assert.Equal(t, 3, storage.saves)

	reloaded := openStore(t, storage)
	items := reloaded.Items()
	require.Len(t, items, 2)
	assert.Equal(t, uint64(1), items[0].ProductID)
	assert.Equal(t, "rare", items[0].Note)
	assert.Equal(t, 5, items[1].Quantity)
}

func TestCorruptBlobStartsEmpty(t *testing.T) {
	storage := newMemoryStorage()
	storage.blobs["cart:user:1"] = []byte("{not json")

	s := openStore(t, storage)
	assert.True(t, s.IsEmpty())
}

func TestLoadMergesDuplicateRows(t *testing.T) {
	storage := newMemoryStorage()
	storage.blobs["cart:user:1"] = []byte(`[{"product_id":1,"quantity":1},{"product_id":1,"quantity":2},{"product_id":2,"quantity":0}]`)

	s := openStore(t, storage)
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestClearRemovesBlob(t *testing.T) {
	ctx := context.Background()
	storage := newMemoryStorage()
	s := openStore(t, storage)

	require.NoError(t, s.Add(ctx, product(1, "10.00"), 1, ""))
	require.NoError(t, s.Clear(ctx))

	assert.True(t, s.IsEmpty())
	assert.NotContains(t, storage.blobs, "cart:user:1")
}

func TestSaveFailureSurfacesUpstream(t *testing.T) {
	storage := newMemoryStorage()
	storage.failErr = errors.New("disk full")
	s := openStore(t, storage)

	err := s.Add(context.Background(), product(1, "10.00"), 1, "")
	assert.True(t, errors.Is(err, domain.ErrUpstreamFailure))
}

func TestLinesCarryNoPrices(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, newMemoryStorage())
	require.NoError(t, s.Add(ctx, product(4, "9.99"), 2, "spicy"))

	assert.Equal(t, []domain.ItemRequest{{ProductID: 4, Quantity: 2, Note: "spicy"}}, s.Lines())
}

type productReaderFunc func(ctx context.Context, id uint64) (domain.Product, error)

func (f productReaderFunc) FindByID(ctx context.Context, id uint64) (domain.Product, error) {
	return f(ctx, id)
}

func TestServiceRejectsUnavailableProduct(t *testing.T) {
	svc := NewService(newMemoryStorage(), productReaderFunc(func(_ context.Context, id uint64) (domain.Product, error) {
		p := product(id, "1.00")
		p.Available = false
		return p, nil
	}))

	_, err := svc.AddProduct(context.Background(), domain.Session{CartKey: "cart:user:1"}, 3, 1, "")
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))
}

func TestServiceRequiresCartKey(t *testing.T) {
	svc := NewService(newMemoryStorage(), nil)

	_, err := svc.Get(context.Background(), domain.Session{})
	assert.True(t, errors.Is(err, domain.ErrAuthenticationRequired))
}
