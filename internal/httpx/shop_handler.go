package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	kafkax "github.com/ariefcatur/go-shop-api/internal/kafka"
	"github.com/ariefcatur/go-shop-api/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 3 * time.Second
)

// StoreCache caches rendered GET /store/{id} bodies.
type StoreCache interface {
	Get(ctx context.Context, storeID int64) ([]byte, bool)
	Set(ctx context.Context, storeID int64, body []byte) error
	Invalidate(ctx context.Context, storeIDs ...int64) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// ShopHandler serves the shop API. Cache and Producer are optional.
type ShopHandler struct {
	Service  *shop.Service
	Cache    StoreCache
	Producer Publisher
	Log      *zap.Logger
	// ServiceName is the producer name on published events.
	ServiceName string
}

type AddStoreReq struct {
	ID      *int64 `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type AddProductReq struct {
	ProductID    *int64           `json:"product_id"`
	ProductName  string           `json:"product_name"`
	ProductPrice *decimal.Decimal `json:"product_price"`
	Quantity     *int             `json:"quantity"`
}

type BuyProductReq struct {
	ProductID *int64 `json:"product_id"`
	OrderID   *int64 `json:"order_id"`
	Quantity  *int   `json:"quantity"`
}

// number renders a decimal as a bare JSON number.
type number decimal.Decimal

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

type messageResp struct {
	Message string `json:"message"`
}

type BuyResp struct {
	Message    string `json:"message"`
	OrderID    int64  `json:"order_id"`
	TotalPrice number `json:"total_price"`
}

type LineItemView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UnitPrice number `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type OrderView struct {
	OrderID    int64          `json:"order_id"`
	StoreID    int64          `json:"store_id"`
	TotalPrice number         `json:"total_price"`
	LineItem   []LineItemView `json:"line_item,omitempty"`
}

type OrderHeader struct {
	StoreID    int64  `json:"store_id"`
	OrderID    int64  `json:"order_id"`
	TotalPrice number `json:"total_price"`
}

type ItemSummary struct {
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
	UnitPrice number `json:"unit_price"`
}

type ProductView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    number `json:"price"`
	Quantity int    `json:"quantity"`
}

type StoreViewResp struct {
	StoreID  int64         `json:"store_id"`
	Name     string        `json:"name"`
	Address  string        `json:"address"`
	Products []ProductView `json:"products"`
}

type dataResp struct {
	Data any `json:"data"`
}

func (h *ShopHandler) Register(r chi.Router) {
	r.Post("/add/store", h.addStore)
	r.Post("/store/{id}/add/product", h.addProduct)
	r.Get("/store/{id}/add/product", h.addProduct)
	r.Post("/store/{id}/buy/product", h.buyProduct)
	r.Get("/orders", h.allOrders)
	r.Get("/store/{id}/orders", h.storeOrders)
	r.Get("/store/{id}", h.storeView)
	r.Delete("/delete/store/{id}", h.deleteStore)
	r.Get("/delete/store/{id}", h.deleteStore)
	r.Delete("/store/{id}/delete/order/{order_id}", h.deleteOrder)
	r.Delete("/store/{id}/delete/product/{product_id}", h.deleteProduct)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageResp{Message: msg})
}

// writeError maps service errors onto status codes; anything unexpected is a 500.
func (h *ShopHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shop.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, shop.ErrInvalid):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shop.ErrConflict):
		writeMessage(w, http.StatusBadRequest, conflictMessage(err))
	default:
		h.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func notFoundMessage(err error) string {
	switch shop.MissingEntity(err) {
	case shop.EntityProduct:
		return "could not find product id!"
	case shop.EntityOrder:
		return "could not find order id!"
	default:
		return "could not find store id!"
	}
}

func conflictMessage(err error) string {
	entity := shop.ConflictingEntity(err)
	if entity == "" {
		entity = shop.EntityStore
	}
	return entity + " already exists"
}

func pathID(r *http.Request, name, entity string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, shop.NotFound(entity, 0)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json", shop.ErrInvalid)
	}
	return nil
}

func missing(fields ...string) error {
	return fmt.Errorf("%w: required fields: %s", shop.ErrInvalid, strings.Join(fields, ", "))
}

func (h *ShopHandler) addStore(w http.ResponseWriter, r *http.Request) {
	var req AddStoreReq
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ID == nil {
		h.writeError(w, r, missing("id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	sh := shop.Shop{ID: *req.ID, Name: req.Name, Address: req.Address}
	if err := h.Service.AddStore(ctx, sh); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.emit(r, shop.EventStoreAdded, sh.ID, shop.StoreAddedPayload{StoreID: sh.ID, Name: sh.Name, Address: sh.Address})
	writeMessage(w, http.StatusCreated, "New store added")
}

func (h *ShopHandler) addProduct(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id", shop.EntityStore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req AddProductReq
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ProductID == nil || req.Quantity == nil {
		h.writeError(w, r, missing("product_id", "quantity"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	res, err := h.Service.RegisterProduct(ctx, shopID, shop.ProductInput{
		ProductID: *req.ProductID,
		Name:      req.ProductName,
		Price:     req.ProductPrice,
		Quantity:  *req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.invalidate(ctx, shopID, res.PreviousShopID)
	h.emit(r, shop.EventProductRegistered, shopID, shop.ProductRegisteredPayload{
		StoreID:         shopID,
		ProductID:       res.Product.ID,
		Outcome:         res.Outcome,
		Quantity:        res.Product.Quantity,
		PreviousStoreID: res.PreviousShopID,
	})

	if res.Outcome == shop.RegisterQuantityUpdated {
		// the top-up is committed but still answers 400
		writeMessage(w, http.StatusBadRequest, "Product already exist in this store. The quantities updated!")
		return
	}
	writeMessage(w, http.StatusCreated, "New product added")
}

func (h *ShopHandler) buyProduct(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id", shop.EntityStore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req BuyProductReq
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ProductID == nil || req.OrderID == nil || req.Quantity == nil {
		h.writeError(w, r, missing("product_id", "order_id", "quantity"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	in := shop.BuyInput{ProductID: *req.ProductID, OrderID: *req.OrderID, Quantity: *req.Quantity}
	res, err := h.Service.Buy(ctx, shopID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if res.Outcome == shop.BuyOutOfStock {
		h.emit(r, shop.EventOutOfStock, res.Product.ShopID, shop.OutOfStockPayload{
			StoreID:   res.Product.ShopID,
			OrderID:   in.OrderID,
			ProductID: in.ProductID,
			Requested: in.Quantity,
			Available: res.Product.Quantity,
		})
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.invalidate(ctx, res.Product.ShopID)
	eventType, msg := shop.EventOrderPlaced, "order placed!"
	if res.Outcome.Updated() {
		eventType, msg = shop.EventOrderUpdated, "order updated!"
	}
	h.emit(r, eventType, res.Order.ShopID, shop.OrderPayload{
		StoreID:    res.Order.ShopID,
		OrderID:    res.Order.ID,
		ProductID:  res.Product.ID,
		Quantity:   in.Quantity,
		TotalPrice: res.Order.TotalPrice,
		Outcome:    res.Outcome,
	})
	writeJSON(w, http.StatusOK, BuyResp{Message: msg, OrderID: res.Order.ID, TotalPrice: number(res.Order.TotalPrice)})
}

func (h *ShopHandler) allOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	orders, err := h.Service.Orders(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v := OrderView{OrderID: o.ID, StoreID: o.ShopID, TotalPrice: number(o.TotalPrice)}
		for _, li := range o.Items {
			v.LineItem = append(v.LineItem, LineItemView{ID: li.ID, Name: li.Name, UnitPrice: number(li.Price), Quantity: li.Quantity})
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, dataResp{Data: out})
}

func (h *ShopHandler) storeOrders(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id", shop.EntityStore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	orders, err := h.Service.StoreOrders(ctx, shopID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// each entry is the order header followed by one summary per item
	out := make([][]any, 0, len(orders))
	for _, o := range orders {
		entry := []any{OrderHeader{StoreID: o.ShopID, OrderID: o.ID, TotalPrice: number(o.TotalPrice)}}
		for _, li := range o.Items {
			entry = append(entry, ItemSummary{ItemName: li.Name, Quantity: li.Quantity, UnitPrice: number(li.Price)})
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, dataResp{Data: out})
}

func (h *ShopHandler) storeView(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id", shop.EntityStore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	if h.Cache != nil {
		if b, ok := h.Cache.Get(ctx, shopID); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	v, err := h.Service.StoreView(ctx, shopID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := StoreViewResp{StoreID: v.Shop.ID, Name: v.Shop.Name, Address: v.Shop.Address, Products: make([]ProductView, 0, len(v.Products))}
	for _, p := range v.Products {
		resp.Products = append(resp.Products, ProductView{ID: p.ID, Name: p.Name, Price: number(p.Price), Quantity: p.Quantity})
	}
	b, err := json.Marshal(dataResp{Data: resp})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, shopID, b); err != nil {
			h.Log.Warn("store cache set", zap.Int64("store_id", shopID), zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *ShopHandler) deleteStore(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id", shop.EntityStore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	if err := h.Service.DeleteStore(ctx, shopID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(ctx, shopID)
	h.emit(r, shop.EventStoreDeleted, shopID, shop.StoreDeletedPayload{StoreID: shopID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShopHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id", shop.EntityStore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orderID, err := pathID(r, "order_id", shop.EntityOrder)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	o, err := h.Service.DeleteOrder(ctx, shopID, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.emit(r, shop.EventOrderDeleted, o.ShopID, shop.OrderDeletedPayload{StoreID: o.ShopID, OrderID: o.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShopHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "id", shop.EntityStore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	productID, err := pathID(r, "product_id", shop.EntityProduct)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	p, err := h.Service.DeleteProduct(ctx, shopID, productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(ctx, p.ShopID)
	h.emit(r, shop.EventProductDeleted, p.ShopID, shop.ProductDeletedPayload{StoreID: p.ShopID, ProductID: p.ID})
	w.WriteHeader(http.StatusNoContent)
}

// invalidate drops cached views of the given stores; zero ids are skipped.
func (h *ShopHandler) invalidate(ctx context.Context, storeIDs ...int64) {
	if h.Cache == nil {
		return
	}
	ids := storeIDs[:0]
	for _, id := range storeIDs {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	if err := h.Cache.Invalidate(ctx, ids...); err != nil {
		h.Log.Warn("store cache invalidate", zap.Int64s("store_ids", ids), zap.Error(err))
	}
}

// emit publishes an event after the transaction committed. Failures are
// logged and never fail the request.
func (h *ShopHandler) emit(r *http.Request, eventType string, storeID int64, payload any) {
	if h.Producer == nil {
		return
	}
	env, err := shop.NewEnvelope(eventType, h.ServiceName, middleware.GetReqID(r.Context()), storeID, payload)
	if err != nil {
		h.Log.Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	b, headers, err := kafkax.EncodeEnvelope(env)
	if err != nil {
		h.Log.Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	h.Producer.Publish(shop.PartitionKey(storeID), b, headers...)
}
