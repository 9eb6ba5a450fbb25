package port

import (
	"context"
	"errors"

	"github.com/rl1809/rocket-cart/internal/core/domain"
)

var (
	ErrSnapshotNotFound = errors.New("cart snapshot not found")
	ErrSnapshotCorrupt  = errors.New("cart snapshot corrupt")
	ErrVersionConflict  = errors.New("cart snapshot version conflict")
)

type CartRepository interface {
	// Load reads the persisted snapshot. Returns ErrSnapshotNotFound when nothing is stored
	Load(ctx context.Context) (domain.Snapshot, error)

	// Save replaces the whole cart if the stored version still equals expectedVersion,
	// returning the new version, or ErrVersionConflict otherwise
	Save(ctx context.Context, cart domain.Cart, expectedVersion int64) (int64, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
