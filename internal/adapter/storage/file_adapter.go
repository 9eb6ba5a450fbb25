package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rl1809/rocket-cart/internal/core/domain"
	"github.com/rl1809/rocket-cart/internal/port"
)

type fileRecord struct {
	Version int64           `json:"version"`
	Cart    json.RawMessage `json:"cart"`
}

// FileAdapter keeps the snapshot in a JSON file under dir, one file per key.
// Writes go to a temp file that is renamed over the previous one.
type FileAdapter struct {
	mu   sync.Mutex
	path string
}

func NewFileAdapter(dir, key string) (*FileAdapter, error) {
	if key == "" {
		key = DefaultCartKey
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}
	return &FileAdapter{path: filepath.Join(dir, fileName(key))}, nil
}

func fileName(key string) string {
	r := strings.NewReplacer("@", "", ":", "_", "/", "_", `\`, "_")
	return r.Replace(key) + ".json"
}

func (f *FileAdapter) Load(ctx context.Context) (domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileAdapter) read() (domain.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, port.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read %s: %w", f.path, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", port.ErrSnapshotCorrupt, err)
	}

	snap := domain.Snapshot{Version: rec.Version, Cart: domain.Cart{}}
	if len(rec.Cart) == 0 {
		return snap, fmt.Errorf("%w: missing cart", port.ErrSnapshotCorrupt)
	}
	cart, err := decodeCart(rec.Cart)
	if err != nil {
		return domain.Snapshot{Version: rec.Version}, err
	}
	snap.Cart = cart
	return snap, nil
}

// decodeCart parses a stored cart array. Anything that does not decode to a
// valid cart is reported as ErrSnapshotCorrupt.
func decodeCart(data []byte) (domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrSnapshotCorrupt, err)
	}
	if err := cart.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrSnapshotCorrupt, err)
	}
	if cart == nil {
		cart = domain.Cart{}
	}
	return cart, nil
}

func (f *FileAdapter) Save(ctx context.Context, cart domain.Cart, expectedVersion int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var current int64
	snap, err := f.read()
	switch {
	case err == nil, errors.Is(err, port.ErrSnapshotCorrupt):
		current = snap.Version
	case errors.Is(err, port.ErrSnapshotNotFound):
	default:
		return 0, err
	}
	if current != expectedVersion {
		return 0, port.ErrVersionConflict
	}

	if cart == nil {
		cart = domain.Cart{}
	}
	rawCart, err := json.Marshal(cart)
	if err != nil {
		return 0, fmt.Errorf("marshal cart: %w", err)
	}
	data, err := json.Marshal(fileRecord{Version: current + 1, Cart: rawCart})
	if err != nil {
		return 0, fmt.Errorf("marshal record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".cart-*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	return current + 1, nil
}

// Ping checks that the directory holding the snapshot is still there.
func (f *FileAdapter) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(f.path))
	return err
}
