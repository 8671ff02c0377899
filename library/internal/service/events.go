package service

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/pkg/jsonx"
)

func newTransactionEvent(typ model.EventType, t model.Transaction, at time.Time) model.TransactionEvent {
	return model.TransactionEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		TransactionID: t.ID,
		UserID:        t.UserID,
		BookID:        t.BookID,
		OccurredAt:    at,
	}
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends the event keyed by book id, so events of one book stay ordered.
func (p *KafkaPublisher) Publish(_ context.Context, event model.TransactionEvent) error {
	data, err := jsonx.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.Itoa(event.BookID)),
		Value: sarama.ByteEncoder(data),
	}
	_, _, err = p.producer.SendMessage(msg)
	return err
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.TransactionEvent) error { return nil }
