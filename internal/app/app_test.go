package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/rocket-cart/internal/adapter/handler"
	"github.com/rl1809/rocket-cart/internal/config"
	"github.com/rl1809/rocket-cart/internal/core/domain"
)

// fakeShopAPI serves /products/{id} and /stock/{id} like the storefront API.
type fakeShopAPI struct {
	mu    sync.Mutex
	stock map[int]int
}

func (f *fakeShopAPI) setStock(id, amount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[id] = amount
}

func (f *fakeShopAPI) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/stock/{id}", func(w http.ResponseWriter, r *http.Request) {
		var id int
		fmt.Sscan(chi.URLParam(r, "id"), &id)
		f.mu.Lock()
		amount, ok := f.stock[id]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"id":%d,"amount":%d}`, id, amount)
	})
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		var id int
		fmt.Sscan(chi.URLParam(r, "id"), &id)
		fmt.Fprintf(w, `{"id":%d,"title":"Tênis %d","price":%d.9,"image":"https://shop.test/%d.jpg"}`, id, id, 100+id, id)
	})
	return r
}

func newTestConfig(t *testing.T, catalogURL string) *config.Config {
	return &config.Config{
		CartStore:          config.StoreFile,
		CartDir:            t.TempDir(),
		CartKey:            "@RocketShoes:cart",
		Catalog:            config.CatalogHTTP,
		CatalogURL:         catalogURL,
		CatalogTimeout:     time.Second,
		NotificationBuffer: 10,
	}
}

func startShop(t *testing.T, stock map[int]int) (*fakeShopAPI, string) {
	shop := &fakeShopAPI{stock: stock}
	srv := httptest.NewServer(shop.handler())
	t.Cleanup(srv.Close)
	return shop, srv.URL
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, http.Handler) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, a.HTTP.Routes(a.Hub)
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, handler.MutationResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var resp handler.MutationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func amounts(cart domain.Cart) map[int]int {
	return cart.ItemsAmount()
}

func TestApp_CartScenarios(t *testing.T) {
	shop, url := startShop(t, map[int]int{1: 5, 2: 3})
	cfg := newTestConfig(t, url)
	a, api := newTestApp(t, cfg)

	// scenario A: add to empty cart
	code, resp := call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":1}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, map[int]int{1: 1}, amounts(a.Cart.Cart()))
	assert.Equal(t, "Tênis 1", a.Cart.Cart()[0].Title)

	// scenario B: adding past stock is rejected
	for i := 0; i < 4; i++ {
		code, _ = call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":1}`)
		require.Equal(t, http.StatusOK, code)
	}
	code, resp = call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":1}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.MsgOutOfStock, resp.Message)
	assert.Equal(t, map[int]int{1: 5}, amounts(a.Cart.Cart()))

	// scenario C: set amount within stock
	shop.setStock(1, 10)
	code, _ = call(t, api, http.MethodPut, "/api/cart/items/1", `{"amount":7}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[int]int{1: 7}, amounts(a.Cart.Cart()))

	// scenario D: zero amount is rejected
	code, resp = call(t, api, http.MethodPut, "/api/cart/items/1", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, domain.MsgAddFailed, resp.Message)
	assert.Equal(t, map[int]int{1: 7}, amounts(a.Cart.Cart()))

	// scenario E: remove one of two
	code, _ = call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":2}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, api, http.MethodDelete, "/api/cart/items/2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[int]int{1: 7}, amounts(a.Cart.Cart()))

	// remove again: not found, unchanged
	code, resp = call(t, api, http.MethodDelete, "/api/cart/items/2", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, domain.MsgRemoveFailed, resp.Message)

	// unknown product: catalog 404 surfaces as a gateway failure
	code, resp = call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":99}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, domain.MsgAddFailed, resp.Message)

	var messages []string
	for _, n := range a.Feed.Recent() {
		messages = append(messages, n.Message)
	}
	assert.Equal(t, []string{domain.MsgOutOfStock, domain.MsgAddFailed, domain.MsgRemoveFailed, domain.MsgAddFailed}, messages)

	// round trip: a fresh app on the same directory restores the cart
	restored, _ := newTestApp(t, cfg)
	assert.Equal(t, a.Cart.Snapshot(), restored.Cart.Snapshot())
}

func TestApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	_, url := startShop(t, map[int]int{3: 2})
	cfg := newTestConfig(t, url)
	cfg.CartStore = config.StoreRedis
	cfg.RedisAddr = mr.Addr()

	a, api := newTestApp(t, cfg)
	code, _ := call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":3}`)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "1", mr.HGet("@RocketShoes:cart", "version"))
	assert.Equal(t, map[int]int{3: 1}, amounts(a.Cart.Cart()))

	// corrupt state written behind our back loads as an empty cart
	mr.HSet("@RocketShoes:cart", "cart", "garbage")
	restored, _ := newTestApp(t, cfg)
	assert.Empty(t, restored.Cart.Cart())
}

func TestApp_RedisPlainStringCart(t *testing.T) {
	mr := miniredis.RunT(t)
	_, url := startShop(t, map[int]int{2: 5})
	cfg := newTestConfig(t, url)
	cfg.CartStore = config.StoreRedis
	cfg.RedisAddr = mr.Addr()

	// the storefront keeps the cart array as a plain string
	require.NoError(t, mr.Set("@RocketShoes:cart", `[{"id":2,"title":"Tênis 2","price":102.9,"image":"","amount":3}]`))

	a, api := newTestApp(t, cfg)
	assert.Equal(t, map[int]int{2: 3}, amounts(a.Cart.Cart()))

	for i := 0; i < 2; i++ {
		code, resp := call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":2}`)
		require.Equal(t, http.StatusOK, code, resp.Message)
	}
	assert.Equal(t, map[int]int{2: 5}, amounts(a.Cart.Cart()))
	assert.Equal(t, "2", mr.HGet("@RocketShoes:cart", "version"))
	assert.Empty(t, a.Feed.Recent())

	// an unreadable plain value starts empty and is replaced on the next add
	require.NoError(t, mr.Set("@RocketShoes:cart", "not a cart"))
	b, api := newTestApp(t, cfg)
	assert.Empty(t, b.Cart.Cart())
	code, _ := call(t, api, http.MethodPost, "/api/cart/items", `{"product_id":2}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[int]int{2: 1}, amounts(b.Cart.Cart()))
}

func TestApp_LiveFeedMatchesPolledNotifications(t *testing.T) {
	_, url := startShop(t, map[int]int{1: 1})
	a, api := newTestApp(t, newTestConfig(t, url))

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent := func() handler.Event {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev handler.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}
	assert.Equal(t, "cart", readEvent().Type)

	_, err = a.Cart.AddProduct(context.Background(), 1)
	require.NoError(t, err)
	changed := readEvent()
	require.NotNil(t, changed.Cart)
	assert.Equal(t, map[int]int{1: 1}, changed.Cart.ItemsAmount)

	_, err = a.Cart.AddProduct(context.Background(), 1)
	require.Error(t, err)
	note := readEvent()
	require.NotNil(t, note.Notification)

	recent := a.Feed.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, recent[0].ID, note.Notification.ID)
	assert.Equal(t, domain.MsgOutOfStock, note.Notification.Message)
}

func TestApp_ConcurrentAddsNeverExceedStock(t *testing.T) {
	_, url := startShop(t, map[int]int{1: 10})
	a, _ := newTestApp(t, newTestConfig(t, url))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Cart.AddProduct(context.Background(), 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int]int{1: 10}, amounts(a.Cart.Cart()))
}

func TestNew_UnknownBackends(t *testing.T) {
	logger, _ := test.NewNullLogger()

	cfg := newTestConfig(t, "http://unused")
	cfg.CartStore = "s3"
	_, err := New(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "unknown cart store")

	cfg = newTestConfig(t, "http://unused")
	cfg.Catalog = "graphql"
	_, err = New(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "unknown catalog")
}
