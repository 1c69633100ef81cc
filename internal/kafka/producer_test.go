package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestProducerDropsPublishAfterContextEnds(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "shop.events", 4, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	select {
	case <-p.done:
	default:
		t.Fatal("producer still accepting messages after its context ended")
	}

	p.Publish([]byte("1"), []byte(`{}`))
	assert.Empty(t, p.inbox)

	p.Close()
}
