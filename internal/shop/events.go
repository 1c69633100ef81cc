package shop

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TopicShopEvents = "shop.events"

const (
	EventStoreAdded        = "StoreAdded"
	EventProductRegistered = "ProductRegistered"
	EventOrderPlaced       = "OrderPlaced"
	EventOrderUpdated      = "OrderUpdated"
	EventOutOfStock        = "OutOfStock"
	EventStoreDeleted      = "StoreDeleted"
	EventOrderDeleted      = "OrderDeleted"
	EventProductDeleted    = "ProductDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // store id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a version 1 envelope keyed by storeID.
func NewEnvelope(eventType, producer, traceID string, storeID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(storeID, 10),
		Payload:       b,
	}, nil
}

// PartitionKey keeps all events of one store in order.
func PartitionKey(storeID int64) []byte { return []byte(strconv.FormatInt(storeID, 10)) }

type StoreAddedPayload struct {
	StoreID int64  `json:"store_id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type ProductRegisteredPayload struct {
	StoreID         int64           `json:"store_id"`
	ProductID       int64           `json:"product_id"`
	Outcome         RegisterOutcome `json:"outcome"`
	Quantity        int             `json:"quantity"`
	PreviousStoreID int64           `json:"previous_store_id,omitempty"`
}

type OrderPayload struct {
	StoreID    int64           `json:"store_id"`
	OrderID    int64           `json:"order_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Outcome    BuyOutcome      `json:"outcome"`
}

type OutOfStockPayload struct {
	StoreID   int64 `json:"store_id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

type StoreDeletedPayload struct {
	StoreID int64 `json:"store_id"`
}

type OrderDeletedPayload struct {
	StoreID int64 `json:"store_id"`
	OrderID int64 `json:"order_id"`
}

type ProductDeletedPayload struct {
	StoreID   int64 `json:"store_id"`
	ProductID int64 `json:"product_id"`
}
