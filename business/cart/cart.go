// Package cart is the diner's staging area. A Store holds one cart in memory and
// rewrites its whole blob to durable storage after every mutation.
package cart

import (
	"context"
	"encoding/json"
	"sync"

	"digitalMenu/domain"
	"digitalMenu/pkg/logger"

	"github.com/shopspring/decimal"
)

// Storage persists one blob per cart key. Load returns nil data when nothing is stored.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

type Store struct {
	mu      sync.Mutex
	key     string
	storage Storage
	items   []domain.CartItem
}

// Open restores the cart stored under key. A blob that cannot be decoded is
// discarded and the cart starts empty rather than half-loaded.
func Open(ctx context.Context, storage Storage, key string) (*Store, error) {
	if key == "" {
		return nil, domain.NewError(domain.CodeValidation, "cart key is required")
	}

	s := &Store{key: key, storage: storage}

	data, err := storage.Load(ctx, key)
	if err != nil {
		return nil, domain.Upstream(err, "load cart")
	}
	if len(data) == 0 {
		return s, nil
	}

	var stored []domain.CartItem
	if err := json.Unmarshal(data, &stored); err != nil {
		logger.Warn("Discarding unreadable cart", "key", key, "error", err)
		return s, nil
	}

	// merge duplicates and drop invalid rows so a hand-edited blob still honors
	// one entry per product
	for _, item := range stored {
		if item.ProductID == 0 || item.Quantity <= 0 {
			continue
		}
		if i := s.indexOf(item.ProductID); i >= 0 {
			s.items[i].Quantity += item.Quantity
			continue
		}
		s.items = append(s.items, item)
	}

	return s, nil
}

func (s *Store) Key() string {
	return s.key
}

// Add merges into the product's entry (quantities sum, a non-empty note replaces
// the old one) or appends a new entry.
func (s *Store) Add(ctx context.Context, product domain.Product, qty int, note string) error {
	if qty <= 0 {
		return domain.NewError(domain.CodeValidation, "quantity must be at least 1")
	}
	if product.ID == 0 {
		return domain.NewError(domain.CodeValidation, "product is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(product.ID); i >= 0 {
		s.items[i].Quantity += qty
		s.items[i].UnitPrice = product.Price
		s.items[i].Name = product.Name
		if note != "" {
			s.items[i].Note = note
		}
	} else {
		s.items = append(s.items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  qty,
			Note:      note,
		})
	}

	return s.persist(ctx)
}

func (s *Store) Remove(ctx context.Context, productID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)

	return s.persist(ctx)
}

// SetQuantity replaces the quantity of an existing entry; zero or less removes it.
func (s *Store) SetQuantity(ctx context.Context, productID uint64, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return domain.NewError(domain.CodeNotFound, "product %d is not in the cart", productID)
	}
	s.items[i].Quantity = qty

	return s.persist(ctx)
}

func (s *Store) SetNote(ctx context.Context, productID uint64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return domain.NewError(domain.CodeNotFound, "product %d is not in the cart", productID)
	}
	s.items[i].Note = note

	return s.persist(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if err := s.storage.Delete(ctx, s.key); err != nil {
		return domain.Upstream(err, "clear cart")
	}
	return nil
}

func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// Count is the total number of units, not of entries.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// Subtotal uses the last-known prices and is advisory only.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2)
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// Lines converts the cart into composer input. Prices are deliberately left out.
func (s *Store) Lines() []domain.ItemRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.ItemRequest, 0, len(s.items))
	for _, item := range s.items {
		lines = append(lines, domain.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Note:      item.Note,
		})
	}
	return lines
}

func (s *Store) indexOf(productID uint64) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	items := s.items
	if items == nil {
		items = []domain.CartItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return domain.WrapError(domain.CodeUpstreamFailure, err, "failed to encode cart")
	}

	if err := s.storage.Save(ctx, s.key, data); err != nil {
		return domain.Upstream(err, "save cart")
	}
	return nil
}
