package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/rocket-cart/internal/adapter/storage"
	"github.com/rl1809/rocket-cart/internal/core/domain"
	"github.com/rl1809/rocket-cart/internal/core/service"
	"github.com/rl1809/rocket-cart/internal/logging"
	"github.com/rl1809/rocket-cart/internal/port"
)

const (
	cartKey       = "@RocketShoes:stress"
	productID     = 1
	initialStock  = 20
	totalRequests = 50
	writers       = 2
)

// fixedCatalog serves one product with a fixed stock.
type fixedCatalog struct{}

func (fixedCatalog) GetStock(ctx context.Context, id int) (domain.Stock, error) {
	return domain.Stock{ID: id, Amount: initialStock}, nil
}

func (fixedCatalog) GetProduct(ctx context.Context, id int) (domain.Product, error) {
	return domain.Product{ID: id, Title: "Tênis de Caminhada", Price: decimal.RequireFromString("179.90")}, nil
}

type countingNotifier struct {
	counts sync.Map
}

func (c *countingNotifier) Notify(ctx context.Context, message string, kind domain.NotificationKind) {
	n, _ := c.counts.LoadOrStore(message, new(atomic.Int32))
	n.(*atomic.Int32).Add(1)
}

func main() {
	ctx := context.Background()
	log := logging.New(os.Stderr, "warn")

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	defer rdb.Close()

	repo := storage.NewRedisAdapter(rdb, cartKey)
	if err := repo.Clear(ctx); err != nil {
		log.WithError(err).Fatal("failed to clear previous run")
	}

	// Independent writers sharing one key stand in for separate processes.
	quiet := logrus.New()
	quiet.Out = io.Discard
	notifier := &countingNotifier{}
	services := make([]*service.CartService, writers)
	for i := range services {
		services[i] = service.NewCartService(ctx, repo, fixedCatalog{}, fixedCatalog{}, notifier, quiet)
	}

	var successCount, stockCount, conflictCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := services[n%writers].AddProduct(ctx, productID)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrStockExceeded):
				stockCount.Add(1)
			case errors.Is(err, port.ErrVersionConflict):
				conflictCount.Add(1)
			default:
				log.WithError(err).Warn("unexpected failure")
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	snap, err := repo.Load(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to load final snapshot")
	}
	stored, _ := snap.Cart.Find(productID)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Stock:            %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Committed:        %d\n", successCount.Load())
	fmt.Printf("Out of stock:     %d\n", stockCount.Load())
	fmt.Printf("Version conflict: %d\n", conflictCount.Load())
	fmt.Printf("Stored amount:    %d (version %d)\n", stored.Amount, snap.Version)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	notifier.counts.Range(func(k, v any) bool {
		fmt.Printf("notification %-35q x%d\n", k, v.(*atomic.Int32).Load())
		return true
	})

	if int(successCount.Load()) == stored.Amount && stored.Amount <= initialStock {
		fmt.Println("PASS: every commit is reflected in storage and stock was never exceeded")
	} else {
		fmt.Printf("FAIL: %d commits but stored amount %d\n", successCount.Load(), stored.Amount)
		os.Exit(1)
	}
}
