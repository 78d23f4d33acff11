package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/order-events-service/internal/config"
	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/telemetry"
)

const seedCatalog = `[
  {"id":"X1","productName":"Keyboard","code":"C1","price":"10.00","model":"K-1"},
  {"id":"X2","productName":"Mouse","code":"C2","price":"15.00","model":"M-2"}
]`

func setupMemoryApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(seed, []byte(seedCatalog), 0o600))

	ctx, cancel := context.WithCancel(context.Background())

	cfg := config.Config{
		CatalogSeedFile:   seed,
		CatalogCacheTTL:   time.Minute,
		EventTransport:    config.TransportMemory,
		EventsDBPath:      filepath.Join(dir, "events.db"),
		IngestConcurrency: 2,
		CallTimeout:       time.Second,
		OtelServiceName:   "order-api-test",
	}
	app, err := buildApp(ctx, cfg, telemetry.NewLogger(os.Stderr, 0))
	if err != nil {
		cancel()
	}
	require.NoError(t, err)
	// шина должна остановиться до закрытия журнала
	t.Cleanup(func() {
		cancel()
		app.Close()
	})
	return app
}

func serve(app *App, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)
	return w
}

// history вызывается и из assert.Eventually, поэтому не использует require.
func history(app *App, orderID string) []domain.EventRecord {
	w := serve(app, http.MethodGet, "/api/events/"+orderID, "")
	if w.Code != http.StatusOK {
		return nil
	}
	var recs []domain.EventRecord
	if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil {
		return nil
	}
	return recs
}

func TestOrderLifecycle_MemoryTransport(t *testing.T) {
	app := setupMemoryApp(t)

	w := serve(app, http.MethodPost, "/orders",
		`{"email":"a@b.c","productIds":["X1","X2"],"payment":"CREDIT_CARD","shipping":{"type":"EXPRESS","carrier":"FEDEX"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	require.Eventually(t, func() bool { return len(history(app, created.ID)) == 1 }, 3*time.Second, 10*time.Millisecond)

	w = serve(app, http.MethodDelete, "/orders?email=a@b.c&orderId="+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return len(history(app, created.ID)) == 2 }, 3*time.Second, 10*time.Millisecond)
	recs := history(app, created.ID)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.EventOrderCreated, recs[0].EventType)
	assert.Equal(t, domain.EventOrderDeleted, recs[1].EventType)
	assert.Equal(t, "#ORDER_"+created.ID, recs[1].PK)
	assert.Equal(t, []string{"C1", "C2"}, recs[1].Info.ProductCodes)
	assert.NotEmpty(t, recs[0].RequestID)
}

func TestUnknownProduct_NothingStoredOrEmitted(t *testing.T) {
	app := setupMemoryApp(t)

	w := serve(app, http.MethodPost, "/orders",
		`{"email":"a@b.c","productIds":["X1","X9"],"payment":"PAYPAL","shipping":{"type":"STANDARD","carrier":"UPS"}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Some Products were not found!"}`, w.Body.String())

	w = serve(app, http.MethodGet, "/orders", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestBuildApp_BadSeedFile(t *testing.T) {
	cfg := config.Config{CatalogSeedFile: filepath.Join(t.TempDir(), "missing.json"), EventTransport: config.TransportNone}
	_, err := buildApp(context.Background(), cfg, telemetry.NewLogger(os.Stderr, 0))
	assert.Error(t, err)
}
