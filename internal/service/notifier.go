package service

import (
	"context"

	"alcyxob/coach-sessions/internal/metrics"
	"alcyxob/coach-sessions/internal/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// notifier publishes session events once the store has committed.
// Delivery is best effort: a failed publish is logged and counted, never returned.
type notifier struct {
	publisher realtime.Publisher
	metrics   *metrics.Manager
	log       *zap.Logger
}

func (n *notifier) publish(ctx context.Context, sessionID primitive.ObjectID, events ...realtime.Event) {
	// the request may already be cancelled; the write it reports on is not
	ctx = context.WithoutCancel(ctx)
	channel := realtime.ChannelForSession(sessionID)
	for _, ev := range events {
		result := "ok"
		if err := n.publisher.Publish(ctx, channel, ev); err != nil {
			result = "error"
			n.log.Warn("failed to publish session event",
				zap.String("channel", channel),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
		n.metrics.CounterEventsPublished.WithLabelValues(string(ev.Type), result).Inc()
	}
}
