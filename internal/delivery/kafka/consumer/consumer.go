package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/vogiaan1904/tablequeue/internal/delivery/kafka"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/realtime"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

const eventBuffer = 32

// GroupFactory opens a consumer group with the given id.
type GroupFactory func(groupID string) (sarama.ConsumerGroup, error)

type changeFeed struct {
	newGroup    GroupFactory
	topic       string
	groupPrefix string
	l           logger.Logger
}

// NewChangeFeed returns a realtime.Feed over the CDC topic. Every subscription
// joins its own consumer group so each widget sees every change.
func NewChangeFeed(newGroup GroupFactory, topic, groupPrefix string, l logger.Logger) realtime.Feed {
	if topic == "" {
		topic = kafka.TopicQueueTokenChanges
	}
	return &changeFeed{
		newGroup:    newGroup,
		topic:       topic,
		groupPrefix: groupPrefix,
		l:           l,
	}
}

func (f *changeFeed) Subscribe(ctx context.Context) (realtime.Subscription, error) {
	groupID := fmt.Sprintf("%s-%s", f.groupPrefix, uuid.NewString())
	consGr, err := f.newGroup(groupID)
	if err != nil {
		return nil, err
	}

	c := NewConsumer(consGr, f.topic, f.l)
	c.Start(ctx)
	f.l.Infof(ctx, "delivery.kafka.consumer.consumer.Subscribe: group %s consuming %s", groupID, f.topic)
	return c, nil
}

// Consumer is one subscription to the CDC topic.
type Consumer struct {
	consGr sarama.ConsumerGroup
	topic  string
	l      logger.Logger
	out    chan models.ChangeEvent

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewConsumer(consGr sarama.ConsumerGroup, topic string, l logger.Logger) *Consumer {
	return &Consumer{
		consGr: consGr,
		topic:  topic,
		l:      l,
		out:    make(chan models.ChangeEvent, eventBuffer),
	}
}

// Start consumes until ctx ends, Close is called or the group fails. Events is
// closed once consumption stops.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Go(func() {
		defer close(c.out)
		for {
			if err := c.consGr.Consume(ctx, []string{c.topic}, c); err != nil {
				if !errors.Is(err, sarama.ErrClosedConsumerGroup) {
					c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
				}
				return
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
		}
	})
}

func (c *Consumer) Events() <-chan models.ChangeEvent {
	return c.out
}

func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		err = c.consGr.Close()
		c.wg.Wait()
	})
	return err
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debugf(context.Background(), "delivery.kafka.consumer.consumer.Setup: session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debugf(context.Background(), "delivery.kafka.consumer.consumer.Cleanup: session ended")
	return nil
}

func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			ev, err := realtime.DecodeChangeEvent(message.Value)
			if err != nil {
				c.l.Warnf(ss.Context(), "delivery.kafka.consumer.consumer.ConsumeClaim: offset %d: %v", message.Offset, err)
				ss.MarkMessage(message, "")
				continue
			}

			select {
			case c.out <- ev:
			case <-ss.Context().Done():
				return nil
			}
			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
