package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/order-events-service/internal/adapter/cache"
	"github.com/example/order-events-service/internal/adapter/httpapi"
	"github.com/example/order-events-service/internal/adapter/memstore"
	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/usecase"
)

func seededStore(b *testing.B, n int) (*memstore.Orders, []domain.Order) {
	store := memstore.NewOrders()
	orders := make([]domain.Order, 0, n)
	items := []domain.CatalogItem{{ID: "X1", Code: "C1", Price: decimal.NewFromInt(10)}}
	for i := 0; i < n; i++ {
		draft := domain.NewOrder(fmt.Sprintf("user-%d@b.c", i%50), domain.Shipping{Type: domain.ShippingStandard, Carrier: domain.CarrierUPS},
			domain.PaymentPaypal, items)
		o, err := store.Create(context.Background(), draft)
		if err != nil {
			b.Fatal(err)
		}
		orders = append(orders, o)
	}
	return store, orders
}

func BenchmarkHandleGetOne(b *testing.B) {
	store, orders := seededStore(b, 1000)
	router := httpapi.NewServer("bench", usecase.CreateOrder{}, usecase.CancelOrder{}, usecase.GetOrders{Store: store}, nil).Router

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			o := orders[i%len(orders)]
			req := httptest.NewRequest(http.MethodGet, "/orders?email="+o.Email+"&orderId="+o.ID, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			i++
		}
	})
}

func BenchmarkCachedCatalog(b *testing.B) {
	src := memstore.NewCatalog()
	ids := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("X%d", i)
		src.Set(domain.CatalogItem{ID: id, Code: "C" + id, Price: decimal.NewFromInt(int64(i))})
		ids = append(ids, id)
	}
	c := cache.CachedCatalog{Source: src, Cache: cache.NewMemoryItemCache(time.Minute)}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.LookupMany(ctx, ids[i%90:i%90+10])
	}
}
