package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/rocket-cart/internal/core/domain"
	"github.com/rl1809/rocket-cart/internal/port"
)

const (
	DefaultCartKey = "@RocketShoes:cart"

	versionField = "version"
	cartField    = "cart"
)

// saveCartScript replaces the cart only if the stored version matches ARGV[1].
// Returns the new version, or -1 on conflict. A missing or unparsable version
// counts as 0, as does a key of any type other than hash, which is replaced.
var saveCartScript = redis.NewScript(`
local key = KEYS[1]
local expected = tonumber(ARGV[1])

local t = redis.call('TYPE', key)
local kind = type(t) == 'table' and t.ok or t

local current = 0
if kind == 'hash' then
	current = tonumber(redis.call('HGET', key, 'version')) or 0
end

if current ~= expected then
	return -1
end

if kind ~= 'hash' and kind ~= 'none' then
	redis.call('DEL', key)
end
redis.call('HSET', key, 'version', current + 1, 'cart', ARGV[2])
return current + 1
`)

type RedisAdapter struct {
	client *redis.Client
	key    string
}

func NewRedisAdapter(client *redis.Client, key string) *RedisAdapter {
	if key == "" {
		key = DefaultCartKey
	}
	return &RedisAdapter{client: client, key: key}
}

func (r *RedisAdapter) Load(ctx context.Context) (domain.Snapshot, error) {
	fields, err := r.client.HMGet(ctx, r.key, versionField, cartField).Result()
	if isWrongType(err) {
		return r.loadPlain(ctx)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("hmget %s: %w", r.key, err)
	}

	rawVersion, _ := fields[0].(string)
	rawCart, _ := fields[1].(string)
	if rawVersion == "" && rawCart == "" {
		return domain.Snapshot{}, port.ErrSnapshotNotFound
	}

	var snap domain.Snapshot
	if rawVersion != "" {
		snap.Version, err = strconv.ParseInt(rawVersion, 10, 64)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("%w: version %q", port.ErrSnapshotCorrupt, rawVersion)
		}
	}

	snap.Cart, err = decodeCart([]byte(rawCart))
	if err != nil {
		return domain.Snapshot{Version: snap.Version}, err
	}
	return snap, nil
}

// loadPlain reads a key that holds the cart array as a plain string, the
// format the storefront writes. It counts as version 0; the first save turns
// the key into a hash.
func (r *RedisAdapter) loadPlain(ctx context.Context) (domain.Snapshot, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if isWrongType(err) {
		return domain.Snapshot{}, fmt.Errorf("%w: key %s is not a hash or string", port.ErrSnapshotCorrupt, r.key)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("get %s: %w", r.key, err)
	}
	cart, err := decodeCart([]byte(raw))
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{Cart: cart}, nil
}

func isWrongType(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE")
}

func (r *RedisAdapter) Save(ctx context.Context, cart domain.Cart, expectedVersion int64) (int64, error) {
	if cart == nil {
		cart = domain.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return 0, fmt.Errorf("marshal cart: %w", err)
	}

	version, err := saveCartScript.Run(ctx, r.client, []string{r.key}, expectedVersion, data).Int64()
	if err != nil {
		return 0, fmt.Errorf("save cart script: %w", err)
	}
	if version < 0 {
		return 0, port.ErrVersionConflict
	}
	return version, nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Clear drops the stored snapshot, as a user clearing local storage would.
func (r *RedisAdapter) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
