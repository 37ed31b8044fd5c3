package pricing

import (
	"context"
	"errors"
	"testing"

	"digitalMenu/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products map[uint64]domain.Product
	calls    int
	err      error
}

func (f *fakeCatalog) FindByIDs(_ context.Context, ids []uint64) ([]domain.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func catalog() *fakeCatalog {
	return &fakeCatalog{products: map[uint64]domain.Product{
		1: {ID: 1, Name: "Burger", Price: dec("22.50"), Available: true},
		2: {ID: 2, Name: "Soda", Price: dec("6.35"), Available: true},
		3: {ID: 3, Name: "Seasonal", Price: dec("40.00"), Available: false},
	}}
}

func TestComposePricesFromCatalog(t *testing.T) {
	cat := catalog()
	c := NewComposer(cat)

	order, err := c.Compose(context.Background(), domain.UserPrincipal(7, domain.RoleCustomer), domain.OrderRequest{
		Kind:  domain.KindTakeout,
		Items: []domain.ItemRequest{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 3, Note: " no ice "}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cat.calls)
	require.Len(t, order.Lines, 2)
	assert.True(t, dec("45.00").Equal(order.Lines[0].Subtotal))
	assert.True(t, dec("19.05").Equal(order.Lines[1].Subtotal))
	assert.Equal(t, "no ice", order.Lines[1].Note)
	assert.True(t, dec("64.05").Equal(order.Subtotal))
	assert.True(t, dec("6.41").Equal(order.ServiceFee), order.ServiceFee.String())
	assert.True(t, dec("70.46").Equal(order.Total))
	assert.Equal(t, uint(7), *order.UserID)
	assert.Nil(t, order.TableID)
	assert.Equal(t, domain.OrderPending, order.Status)
}

func TestComposeFeeInvariant(t *testing.T) {
	c := NewComposer(catalog())

	order, err := c.Compose(context.Background(), domain.UserPrincipal(7, domain.RoleCustomer), domain.OrderRequest{
		Kind:        domain.KindDelivery,
		DeliveryFee: dec("8.00"),
		Items:       []domain.ItemRequest{{ProductID: 2, Quantity: 7}},
	})
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Mul(dec("0.10")).Round(2).Equal(order.ServiceFee))
	assert.True(t, order.Subtotal.Add(order.ServiceFee).Add(order.DeliveryFee).Round(2).Equal(order.Total))
}

func TestComposeTableOrderHasNoUser(t *testing.T) {
	c := NewComposer(catalog())

	order, err := c.Compose(context.Background(), domain.TablePrincipal(4, nil), domain.OrderRequest{
		Kind:  domain.KindDineIn,
		Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, uint(4), *order.TableID)
	assert.Nil(t, order.UserID)
	assert.True(t, order.HasOwner())
}

func TestComposeRejectsMissingIdentity(t *testing.T) {
	cat := catalog()
	_, err := NewComposer(cat).Compose(context.Background(), domain.Principal{}, domain.OrderRequest{
		Kind:  domain.KindDineIn,
		Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}},
	})

	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Zero(t, cat.calls)
}

func TestComposeProductNotFound(t *testing.T) {
	_, err := NewComposer(catalog()).Compose(context.Background(), domain.UserPrincipal(1, domain.RoleCustomer), domain.OrderRequest{
		Kind:  domain.KindTakeout,
		Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}, {ProductID: 3, Quantity: 1}, {ProductID: 9, Quantity: 1}},
	})

	require.True(t, errors.Is(err, domain.ErrProductNotFound))
	assert.Contains(t, err.Error(), "3, 9")
}

func TestComposeValidation(t *testing.T) {
	c := NewComposer(catalog())
	user := domain.UserPrincipal(1, domain.RoleCustomer)

	cases := map[string]domain.OrderRequest{
		"empty":             {Kind: domain.KindTakeout},
		"zero quantity":     {Kind: domain.KindTakeout, Items: []domain.ItemRequest{{ProductID: 1, Quantity: 0}}},
		"unknown kind":      {Kind: "drive_thru", Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}}},
		"negative delivery": {Kind: domain.KindDelivery, DeliveryFee: dec("-1"), Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}}},
		"fee on takeout":    {Kind: domain.KindTakeout, DeliveryFee: dec("2"), Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}}},
		"dine in no table":  {Kind: domain.KindDineIn, Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}}},
	}

	for name, req := range cases {
		_, err := c.Compose(context.Background(), user, req)
		assert.True(t, errors.Is(err, domain.ErrValidation), name)
	}
}

func TestComposeUpstreamFailure(t *testing.T) {
	cat := catalog()
	cat.err = errors.New("connection reset")

	_, err := NewComposer(cat).Compose(context.Background(), domain.UserPrincipal(1, domain.RoleCustomer), domain.OrderRequest{
		Kind:  domain.KindTakeout,
		Items: []domain.ItemRequest{{ProductID: 1, Quantity: 1}},
	})

	require.True(t, errors.Is(err, domain.ErrUpstreamFailure))
	assert.Contains(t, err.Error(), "connection reset")
}
