package kafka

import (
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// ConsumerConfig configures a change-feed group. Feed groups live for a single
// subscription, so they start at the newest offset and never commit.
type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	ClientID       string
	SessionTimeout time.Duration
}

func NewConsumer(cfg ConsumerConfig) (sarama.ConsumerGroup, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Offsets.AutoCommit.Enable = false
	if cfg.SessionTimeout > 0 {
		saramaCfg.Consumer.Group.Session.Timeout = cfg.SessionTimeout
		saramaCfg.Consumer.Group.Heartbeat.Interval = cfg.SessionTimeout / 3
	}
	saramaCfg.Consumer.Return.Errors = true

	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create change feed group %s: %w", cfg.GroupID, err)
	}

	log.Printf("Change feed group %s joined brokers: %v\n", cfg.GroupID, cfg.Brokers)

	return consGroup, nil
}
