package kafka

import (
	"fmt"
	"log"

	"github.com/IBM/sarama"
)

// ProducerConfig configures the CDC publisher used by the operator simulator.
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	RetryMax     int
	RequiredAcks int
}

func NewProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	saramaCfg.Producer.Retry.Max = cfg.RetryMax
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Compression = sarama.CompressionSnappy
	// Changes to one token must stay ordered, so keys hash to a fixed partition.
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create change publisher: %w", err)
	}

	log.Printf("Change publisher connected to brokers: %v\n", cfg.Brokers)

	return prod, nil
}
