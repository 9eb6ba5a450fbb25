package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/rocket-cart/internal/core/domain"
	"github.com/rl1809/rocket-cart/internal/port"
)

var (
	ErrStockExceeded    = errors.New("requested amount exceeds stock")
	ErrProductNotInCart = errors.New("product not in cart")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrGateway          = errors.New("catalog unavailable")
)

// RejectedError carries the user-facing message emitted for a failed operation.
type RejectedError struct {
	Message string
	Err     error
}

func (e *RejectedError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

type UpdateProductAmount struct {
	ProductID int `json:"product_id"`
	Amount    int `json:"amount"`
}

// CartService owns the cart for one session. Mutations are serialized by mu,
// held across gateway calls, so each one observes the previous commit.
type CartService struct {
	repo     port.CartRepository
	stock    port.StockGateway
	products port.ProductGateway
	notifier port.Notifier
	log      logrus.FieldLogger

	mu        sync.Mutex
	cart      domain.Cart
	version   int64
	observers []port.CartObserver
}

func NewCartService(
	ctx context.Context,
	repo port.CartRepository,
	stock port.StockGateway,
	products port.ProductGateway,
	notifier port.Notifier,
	log logrus.FieldLogger,
) *CartService {
	s := &CartService{
		repo:     repo,
		stock:    stock,
		products: products,
		notifier: notifier,
		log:      log,
	}
	snap, _ := s.readSnapshot(ctx)
	s.cart, s.version = snap.Cart, snap.Version
	return s
}

// readSnapshot loads the persisted cart. Missing or corrupt state reads as an
// empty cart. The bool is false only when the store could not be read at all.
func (s *CartService) readSnapshot(ctx context.Context) (domain.Snapshot, bool) {
	snap, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, port.ErrSnapshotNotFound):
		return domain.Snapshot{Cart: domain.Cart{}}, true
	case errors.Is(err, port.ErrSnapshotCorrupt):
		s.log.WithError(err).Warn("discarding corrupt cart snapshot")
		// keep the stored version so the next save can overwrite it
		return domain.Snapshot{Version: snap.Version, Cart: domain.Cart{}}, true
	case err != nil:
		s.log.WithError(err).Warn("cart snapshot unreadable, starting empty")
		return domain.Snapshot{Cart: domain.Cart{}}, false
	}
	if err := snap.Cart.Validate(); err != nil {
		s.log.WithError(err).Warn("discarding invalid cart snapshot")
		return domain.Snapshot{Version: snap.Version, Cart: domain.Cart{}}, true
	}
	return domain.Snapshot{Version: snap.Version, Cart: snap.Cart.Clone()}, true
}

func (s *CartService) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *CartService) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Snapshot{Version: s.version, Cart: s.cart.Clone()}
}

func (s *CartService) Subscribe(o port.CartObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// AddProduct adds one unit of productID and returns the cart it committed.
func (s *CartService) AddProduct(ctx context.Context, productID int) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cart.Clone()
	idx := next.Index(productID)

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return nil, s.fail(ctx, domain.MsgAddFailed, fmt.Errorf("%w: get stock %d: %w", ErrGateway, productID, err))
	}

	current := 0
	if idx >= 0 {
		current = next[idx].Amount
	}
	desired := current + 1

	// desired is at least 1, so an empty stock always lands here
	if desired > stock.Amount {
		return nil, s.fail(ctx, domain.MsgOutOfStock, ErrStockExceeded)
	}

	if idx >= 0 {
		next[idx].Amount = desired
	} else {
		product, err := s.products.GetProduct(ctx, productID)
		if err != nil {
			return nil, s.fail(ctx, domain.MsgAddFailed, fmt.Errorf("%w: get product %d: %w", ErrGateway, productID, err))
		}
		product.ID = productID
		product.Amount = 1
		next = append(next, product)
	}

	if err := s.commit(ctx, next); err != nil {
		return nil, s.fail(ctx, domain.MsgAddFailed, err)
	}
	return next.Clone(), nil
}

func (s *CartService) RemoveProduct(ctx context.Context, productID int) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cart.Without(productID)
	if len(next) == len(s.cart) {
		return nil, s.fail(ctx, domain.MsgRemoveFailed, ErrProductNotInCart)
	}

	if err := s.commit(ctx, next); err != nil {
		return nil, s.fail(ctx, domain.MsgRemoveFailed, err)
	}
	return next.Clone(), nil
}

func (s *CartService) UpdateProductAmount(ctx context.Context, req UpdateProductAmount) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// non-positive targets are rejected, not treated as removal
	if req.Amount <= 0 {
		return nil, s.fail(ctx, domain.MsgAddFailed, ErrInvalidAmount)
	}

	stock, err := s.stock.GetStock(ctx, req.ProductID)
	if err != nil {
		return nil, s.fail(ctx, domain.MsgUpdateFailed, fmt.Errorf("%w: get stock %d: %w", ErrGateway, req.ProductID, err))
	}

	if req.Amount > stock.Amount {
		return nil, s.fail(ctx, domain.MsgOutOfStock, ErrStockExceeded)
	}

	next := s.cart.Clone()
	idx := next.Index(req.ProductID)
	if idx < 0 {
		return nil, s.fail(ctx, domain.MsgUpdateFailed, ErrProductNotInCart)
	}
	next[idx].Amount = req.Amount

	if err := s.commit(ctx, next); err != nil {
		return nil, s.fail(ctx, domain.MsgUpdateFailed, err)
	}
	return next.Clone(), nil
}

// commit persists next and, only once the store accepted it, swaps it in.
// Callers must hold mu. The save ignores cancellation so a write the store
// accepted is never missing from memory.
func (s *CartService) commit(ctx context.Context, next domain.Cart) error {
	version, err := s.repo.Save(context.WithoutCancel(ctx), next, s.version)
	if errors.Is(err, port.ErrVersionConflict) {
		s.log.WithField("version", s.version).Warn("cart snapshot changed underneath, reloading")
		if snap, ok := s.readSnapshot(ctx); ok {
			s.cart, s.version = snap.Cart, snap.Version
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}

	s.cart = next
	s.version = version

	// observers run under mu and must not call back into the service
	for _, o := range s.observers {
		o.CartChanged(ctx, next.Clone())
	}
	return nil
}

func (s *CartService) fail(ctx context.Context, message string, err error) error {
	s.log.WithError(err).WithField("notification", message).Debug("cart operation rejected")
	s.notifier.Notify(ctx, message, domain.NotificationError)
	return &RejectedError{Message: message, Err: err}
}
