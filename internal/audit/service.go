// Package audit records the shop event stream.
package audit

import (
	"context"

	kafkax "github.com/ariefcatur/go-shop-api/internal/kafka"
	"github.com/ariefcatur/go-shop-api/internal/shop"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Recorder interface {
	Record(ctx context.Context, env shop.Envelope) (bool, error)
}

// Service is installed as the consumer handler. Dedup is optional; the
// recorder ignores replays on its own.
type Service struct {
	Dedup    Deduper
	Recorder Recorder
	Log      *zap.Logger
}

func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil || env.EventID == "" {
		// poison message: commit it so the partition keeps moving
		s.Log.Warn("skipping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	log := s.Log.With(zap.String("event_id", env.EventID), zap.String("event_type", env.EventType))

	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			log.Warn("dedup unavailable", zap.Error(err))
		} else if !first {
			log.Debug("duplicate event")
			return nil
		}
	}

	fresh, err := s.Recorder.Record(ctx, env)
	if err != nil {
		if s.Dedup != nil {
			_ = s.Dedup.Forget(ctx, env.EventID)
		}
		return err
	}
	log.Info("event recorded", zap.String("store_id", env.CorrelationID), zap.Bool("fresh", fresh))
	return nil
}
