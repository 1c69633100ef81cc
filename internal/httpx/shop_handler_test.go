package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	kafkax "github.com/ariefcatur/go-shop-api/internal/kafka"
	"github.com/ariefcatur/go-shop-api/internal/shop"
	"github.com/ariefcatur/go-shop-api/internal/shop/memory"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[int64][]byte
}

func (c *mapCache) Get(_ context.Context, id int64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[id]
	return b, ok
}

func (c *mapCache) Set(_ context.Context, id int64, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = b
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shop.Envelope
}

func (p *recordingPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	env, err := kafkax.DecodeEnvelope(value)
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	srv   *httptest.Server
	cache *mapCache
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{cache: &mapCache{entries: map[int64][]byte{}}, pub: &recordingPublisher{}}
	r := NewRouter(zap.NewNop())
	h := &ShopHandler{
		Service:     &shop.Service{Store: memory.New()},
		Cache:       f.cache,
		Producer:    f.pub,
		Log:         zap.NewNop(),
		ServiceName: "shop-api-test",
	}
	h.Register(r)
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

// seed creates store 1 with product 10 (price 5.0, quantity 3).
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	code, _ := f.do(t, http.MethodPost, "/add/store", `{"id":1,"name":"corner","address":"1 Main St"}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = f.do(t, http.MethodPost, "/store/1/add/product", `{"product_id":10,"product_name":"mug","product_price":5.0,"quantity":3}`)
	require.Equal(t, http.StatusCreated, code)
}

func TestAddStore(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/add/store", `{"id":1,"name":"corner","address":"1 Main St"}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.JSONEq(t, `{"message":"New store added"}`, body)

	code, _ = f.do(t, http.MethodPost, "/add/store", `{"id":1,"name":"again","address":""}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/add/store", `{"name":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/add/store", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Equal(t, []string{shop.EventStoreAdded}, f.pub.types())
}

func TestAddProductStatuses(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	code, body := f.do(t, http.MethodPost, "/store/1/add/product", `{"product_id":10,"product_name":"mug","product_price":5.0,"quantity":2}`)
	assert.Equal(t, http.StatusBadRequest, code, "top-up keeps answering 400")
	assert.Contains(t, body, "quantities updated")

	code, _ = f.do(t, http.MethodGet, "/store/1/add/product", `{"product_id":11,"product_name":"cup","product_price":"1.25","quantity":2}`)
	assert.Equal(t, http.StatusCreated, code)

	code, body = f.do(t, http.MethodPost, "/store/9/add/product", `{"product_id":12,"product_name":"cup","product_price":1,"quantity":2}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"message":"could not find store id!"}`, body)

	code, _ = f.do(t, http.MethodPost, "/store/abc/add/product", `{"product_id":12,"product_name":"cup","product_price":1,"quantity":2}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/store/1/add/product", `{"product_id":12,"product_name":"cup"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodGet, "/store/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":{"store_id":1,"name":"corner","address":"1 Main St","products":[
		{"id":10,"name":"mug","price":5,"quantity":5},
		{"id":11,"name":"cup","price":1.25,"quantity":2}]}}`, body)
}

func TestMoveAndTopUpWithQuantityOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	code, _ := f.do(t, http.MethodPost, "/add/store", `{"id":2,"name":"other","address":"2 Side St"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := f.do(t, http.MethodPost, "/store/2/add/product", `{"product_id":10,"quantity":7}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.JSONEq(t, `{"message":"New product added"}`, body)

	code, body = f.do(t, http.MethodPost, "/store/2/add/product", `{"product_id":10,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "quantities updated")

	code, body = f.do(t, http.MethodGet, "/store/2", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":{"store_id":2,"name":"other","address":"2 Side St","products":[
		{"id":10,"name":"mug","price":5,"quantity":8}]}}`, body)

	code, body = f.do(t, http.MethodGet, "/store/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":{"store_id":1,"name":"corner","address":"1 Main St","products":[]}}`, body)

	// a new product still needs a name and a price
	code, _ = f.do(t, http.MethodPost, "/store/2/add/product", `{"product_id":11,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestConflictMessages(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	code, body := f.do(t, http.MethodPost, "/add/store", `{"id":1,"name":"again"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"message":"store already exists"}`, body)

	assert.Equal(t, "product already exists", conflictMessage(shop.Conflict(shop.EntityProduct, 10)))
	assert.Equal(t, "order already exists", conflictMessage(shop.Conflict(shop.EntityOrder, 0)))
}

func TestEventPricesKeepDecimalEncoding(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	code, body := f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":2}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"order placed!","order_id":100,"total_price":10}`, body)

	assert.False(t, decimal.MarshalJSONWithoutQuotes)
	f.pub.mu.Lock()
	last := f.pub.events[len(f.pub.events)-1]
	f.pub.mu.Unlock()
	require.Equal(t, shop.EventOrderPlaced, last.EventType)
	var p map[string]any
	require.NoError(t, json.Unmarshal(last.Payload, &p))
	assert.Equal(t, "10", p["total_price"])
}

func TestBuyScenario(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	code, body := f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":2}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"order placed!","order_id":100,"total_price":10}`, body)

	code, _ = f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":2}`)
	assert.Equal(t, http.StatusNoContent, code)

	code, body = f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":1}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"order updated!","order_id":100,"total_price":15}`, body)

	code, _ = f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":0}`)
	assert.Equal(t, http.StatusNoContent, code)

	code, body = f.do(t, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":[{"order_id":100,"store_id":1,"total_price":15,
		"line_item":[{"id":1,"name":"mug","unit_price":5,"quantity":3}]}]}`, body)

	code, body = f.do(t, http.MethodGet, "/store/1/orders", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":[[{"store_id":1,"order_id":100,"total_price":15},
		{"item_name":"mug","quantity":3,"unit_price":5}]]}`, body)

	assert.Equal(t, []string{
		shop.EventStoreAdded, shop.EventProductRegistered, shop.EventOrderPlaced,
		shop.EventOutOfStock, shop.EventOrderUpdated, shop.EventOutOfStock,
	}, f.pub.types())
}

func TestBuyNotFound(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	code, body := f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":99,"order_id":100,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"message":"could not find product id!"}`, body)

	code, body = f.do(t, http.MethodPost, "/store/2/buy/product", `{"product_id":10,"order_id":100,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"message":"could not find store id!"}`, body)

	code, _ = f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStoreViewCache(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	code, _ := f.do(t, http.MethodGet, "/store/1", "")
	require.Equal(t, http.StatusOK, code)
	_, cached := f.cache.Get(context.Background(), 1)
	require.True(t, cached)

	code, _ = f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":1}`)
	require.Equal(t, http.StatusOK, code)
	_, cached = f.cache.Get(context.Background(), 1)
	assert.False(t, cached, "purchase drops the cached view")

	code, body := f.do(t, http.MethodGet, "/store/1", "")
	require.Equal(t, http.StatusOK, code)
	var resp struct {
		Data StoreViewResp `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Data.Products, 1)
	assert.Equal(t, 2, resp.Data.Products[0].Quantity)

	code, _ = f.do(t, http.MethodGet, "/store/7", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDeletes(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	code, _ := f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":1}`)
	require.Equal(t, http.StatusOK, code)

	code, body := f.do(t, http.MethodDelete, "/store/1/delete/order/101", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"message":"could not find order id!"}`, body)

	code, _ = f.do(t, http.MethodDelete, "/store/1/delete/order/100", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = f.do(t, http.MethodDelete, "/store/1/delete/product/11", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodDelete, "/store/1/delete/product/10", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = f.do(t, http.MethodDelete, "/delete/store/1", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = f.do(t, http.MethodGet, "/delete/store/1", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodGet, "/store/1/orders", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDeleteStoreCascadesOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	code, _ := f.do(t, http.MethodPost, "/store/1/buy/product", `{"product_id":10,"order_id":100,"quantity":1}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodDelete, "/delete/store/1", "")
	require.Equal(t, http.StatusNoContent, code)

	code, body := f.do(t, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"data":[]}`, body)
}

func TestLandingAndFallback(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Shop API")

	code, body = f.do(t, http.MethodGet, "/no/such/route", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "Shop API")

	code, body = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}
