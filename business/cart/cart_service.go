package cart

import (
	"context"

	"digitalMenu/domain"
)

// ProductReader is the slice of the product repository the cart needs.
type ProductReader interface {
	FindByID(ctx context.Context, id uint64) (domain.Product, error)
}

// Summary is the cart view handed to clients.
type Summary struct {
	Key      string            `json:"-"`
	Items    []domain.CartItem `json:"items"`
	Count    int               `json:"count"`
	Subtotal string            `json:"subtotal"`
}

type Service struct {
	storage  Storage
	products ProductReader
}

func NewService(storage Storage, products ProductReader) *Service {
	return &Service{storage: storage, products: products}
}

func (s *Service) Open(ctx context.Context, sess domain.Session) (*Store, error) {
	if sess.CartKey == "" {
		return nil, domain.NewError(domain.CodeAuthenticationRequired, "a session is required to use the cart")
	}
	return Open(ctx, s.storage, sess.CartKey)
}

func (s *Service) Get(ctx context.Context, sess domain.Session) (Summary, error) {
	store, err := s.Open(ctx, sess)
	if err != nil {
		return Summary{}, err
	}
	return summarize(store), nil
}

// AddProduct looks up the product so the cart shows a fresh name and price.
func (s *Service) AddProduct(ctx context.Context, sess domain.Session, productID uint64, qty int, note string) (Summary, error) {
	store, err := s.Open(ctx, sess)
	if err != nil {
		return Summary{}, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	if !product.Available {
		return Summary{}, domain.NewError(domain.CodeProductNotFound, "product %d is not available", productID)
	}

	if err := store.Add(ctx, product, qty, note); err != nil {
		return Summary{}, err
	}
	return summarize(store), nil
}

func (s *Service) SetQuantity(ctx context.Context, sess domain.Session, productID uint64, qty int) (Summary, error) {
	store, err := s.Open(ctx, sess)
	if err != nil {
		return Summary{}, err
	}
	if err := store.SetQuantity(ctx, productID, qty); err != nil {
		return Summary{}, err
	}
	return summarize(store), nil
}

func (s *Service) SetNote(ctx context.Context, sess domain.Session, productID uint64, note string) (Summary, error) {
	store, err := s.Open(ctx, sess)
	if err != nil {
		return Summary{}, err
	}
	if err := store.SetNote(ctx, productID, note); err != nil {
		return Summary{}, err
	}
	return summarize(store), nil
}

func (s *Service) Remove(ctx context.Context, sess domain.Session, productID uint64) (Summary, error) {
	store, err := s.Open(ctx, sess)
	if err != nil {
		return Summary{}, err
	}
	if err := store.Remove(ctx, productID); err != nil {
		return Summary{}, err
	}
	return summarize(store), nil
}

func (s *Service) Clear(ctx context.Context, sess domain.Session) error {
	store, err := s.Open(ctx, sess)
	if err != nil {
		return err
	}
	return store.Clear(ctx)
}

func summarize(store *Store) Summary {
	return Summary{
		Key:      store.Key(),
		Items:    store.Items(),
		Count:    store.Count(),
		Subtotal: store.Subtotal().StringFixed(2),
	}
}
