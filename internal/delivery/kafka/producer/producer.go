package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/tablequeue/internal/delivery/kafka"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

type Producer interface {
	PublishChange(ctx context.Context, ev models.ChangeEvent) error
	Close() error
}

type implProducer struct {
	l     logger.Logger
	prod  sarama.SyncProducer
	topic string
}

func NewProducer(prod sarama.SyncProducer, topic string, l logger.Logger) Producer {
	if topic == "" {
		topic = kafka.TopicQueueTokenChanges
	}
	return &implProducer{
		l:     l,
		prod:  prod,
		topic: topic,
	}
}

func (p *implProducer) PublishChange(ctx context.Context, ev models.ChangeEvent) error {
	event := kafka.NewTokenChangeEvent(ev)
	event.Timestamp = time.Now()
	if event.CommitTimestamp.IsZero() {
		event.CommitTimestamp = event.Timestamp
	}

	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishChange: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderTimestamp),
				Value: []byte(event.Timestamp.Format(time.RFC3339)),
			},
			{
				Key:   []byte(kafka.HeaderChangeType),
				Value: []byte(event.Type),
			},
		},
	}
	if key := event.Key(); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	if _, _, err = p.prod.SendMessage(msg); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishChange: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}
