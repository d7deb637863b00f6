package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/acme/campaign-dialer/internal/config"
	"github.com/acme/campaign-dialer/internal/queue"
	"github.com/acme/campaign-dialer/internal/telephony"
	"github.com/acme/campaign-dialer/pkg/logger"
)

// Sink receives decoded call events, normally the dialer engine.
type Sink interface {
	Submit(ev telephony.Event)
}

// Worker consumes telephony backend call events from Kafka and feeds them
// into the outcome handler. Delivery is at-least-once; duplicate terminal
// events are absorbed downstream by the registry.
type Worker struct {
	kafka  *queue.Kafka
	cfg    config.KafkaConfig
	sink   Sink
	logger *logger.Logger
}

// New creates an events worker.
func New(kafka *queue.Kafka, cfg config.KafkaConfig, sink Sink, log *logger.Logger) *Worker {
	return &Worker{kafka: kafka, cfg: cfg, sink: sink, logger: log}
}

// Run consumes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	groupID := w.cfg.ConsumerGroupID
	if groupID == "" {
		groupID = "dialer-events"
	}
	reader := w.kafka.NewReader(w.cfg.CallEventsTopic, groupID)
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("events worker: fetch", zap.Error(err))
			continue
		}

		var ev queue.CallEventMessage
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			w.logger.Error("events worker: unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		w.sink.Submit(toTelephonyEvent(ev))

		if err := reader.CommitMessages(ctx, msg); err != nil {
			w.logger.Error("events worker: commit", zap.Error(err))
		}
	}
}

func toTelephonyEvent(msg queue.CallEventMessage) telephony.Event {
	kind := telephony.EventHangup
	if msg.Kind == queue.EventKindAnswered {
		kind = telephony.EventAnswered
	}
	return telephony.Event{
		CallHandle: msg.CallHandle,
		Kind:       kind,
		Cause:      msg.Cause,
		Duration:   time.Duration(msg.DurationS) * time.Second,
		OccurredAt: msg.OccurredAt,
	}
}
