package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/rocket-cart/internal/adapter/catalog"
	"github.com/rl1809/rocket-cart/internal/adapter/handler"
	"github.com/rl1809/rocket-cart/internal/adapter/notify"
	"github.com/rl1809/rocket-cart/internal/adapter/storage"
	"github.com/rl1809/rocket-cart/internal/config"
	"github.com/rl1809/rocket-cart/internal/core/service"
	"github.com/rl1809/rocket-cart/internal/port"
)

type cartStore interface {
	port.CartRepository
	port.Pinger
}

type catalogGateway interface {
	port.StockGateway
	port.ProductGateway
}

// App is the wired object graph for one cart session.
type App struct {
	Cart   *service.CartService
	Feed   *notify.Feed
	Hub    *handler.Hub
	Health *handler.HealthServer
	HTTP   *handler.HTTPHandler

	closers []io.Closer
}

func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	a := &App{}

	store, err := a.openStore(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	gateway, err := a.openCatalog(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Feed = notify.NewFeed(cfg.NotificationBuffer)
	notifiers := notify.Multi{notify.NewLogNotifier(log), a.Feed}

	a.Cart = service.NewCartService(ctx, store, gateway, gateway, notifiers, log)

	// nothing mutates the cart before the hub subscribes
	a.Hub = handler.NewHub(a.Cart.Cart(), log)
	a.Cart.Subscribe(a.Hub)
	a.Feed.Listen(a.Hub.Publish)

	a.Health = handler.NewHealthServer(store, log)
	a.HTTP = handler.NewHTTPHandler(a.Cart, a.Feed, log)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (cartStore, error) {
	switch cfg.CartStore {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, rdb)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.WithField("addr", cfg.RedisAddr).Info("connected to redis")
		return storage.NewRedisAdapter(rdb, cfg.CartKey), nil
	case config.StoreFile:
		log.WithField("dir", cfg.CartDir).Info("using file cart store")
		return storage.NewFileAdapter(cfg.CartDir, cfg.CartKey)
	default:
		return nil, fmt.Errorf("unknown cart store %q", cfg.CartStore)
	}
}

func (a *App) openCatalog(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (catalogGateway, error) {
	switch cfg.Catalog {
	case config.CatalogHTTP:
		log.WithField("url", cfg.CatalogURL).Info("using http catalog")
		return catalog.NewHTTPAdapter(cfg.CatalogURL, cfg.CatalogTimeout), nil
	case config.CatalogMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		a.closers = append(a.closers, db)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		log.Info("connected to mysql")
		return catalog.NewMySQLAdapter(db), nil
	default:
		return nil, fmt.Errorf("unknown catalog %q", cfg.Catalog)
	}
}

// Close disconnects websocket clients and releases backend connections.
func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Close()
	}
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
