package kafka

import (
	"testing"

	"github.com/ariefcatur/go-shop-api/internal/shop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := shop.NewEnvelope(shop.EventOrderDeleted, "shop-api", "req-1", 3, shop.OrderDeletedPayload{StoreID: 3, OrderID: 9})
	require.NoError(t, err)

	b, headers, err := EncodeEnvelope(env)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, HeaderEventType, headers[0].Key)
	assert.Equal(t, shop.EventOrderDeleted, string(headers[0].Value))
	assert.Equal(t, "1", string(headers[1].Value))

	got, err := DecodeEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)
	assert.Equal(t, "3", got.CorrelationID)

	p, err := UnwrapPayload[shop.OrderDeletedPayload](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, shop.OrderDeletedPayload{StoreID: 3, OrderID: 9}, p)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{"))
	assert.Error(t, err)
}
