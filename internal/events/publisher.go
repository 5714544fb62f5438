package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/models"
)

// Publisher emits message.sent events after a message has been persisted.
// Delivery is best-effort: the message is already durable, so publish
// failures are logged and dropped. A fan-out consumer on another instance
// can bridge room broadcasts across processes.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

type messageSentEvent struct {
	ConversationID string          `json:"conversationId"`
	Message        *models.Message `json:"message"`
	SentAt         time.Time       `json:"sentAt"`
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) MessageSent(ctx context.Context, conversationID string, msg *models.Message) {
	b, err := json.Marshal(messageSentEvent{
		ConversationID: conversationID,
		Message:        msg,
		SentAt:         msg.SentAt,
	})
	if err != nil {
		p.log.Warnw("message event marshal failed", "err", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(conversationID),
		Value: b,
	})
	if err != nil {
		p.log.Warnw("message event publish failed", "conversation", conversationID, "err", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
