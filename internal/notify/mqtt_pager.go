package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type pagerCommand struct {
	PatternMS []int64 `json:"pattern_ms"`
	SentAt    string  `json:"sent_at"`
}

// MQTTPager buzzes a restaurant pager by publishing the vibration pattern to
// an MQTT topic.
type MQTTPager struct {
	client mqtt.Client
	topic  string
}

func NewMQTTPager(client mqtt.Client, topic string) *MQTTPager {
	return &MQTTPager{client: client, topic: topic}
}

// ConnectMQTT dials broker and returns a connected client.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts = opts.SetOrderMatters(false).SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}
	return client, nil
}

func (p *MQTTPager) Vibrate(ctx context.Context, pattern []time.Duration) error {
	if p.client == nil || !p.client.IsConnectionOpen() {
		return ErrUnavailable
	}

	cmd := pagerCommand{
		PatternMS: make([]int64, 0, len(pattern)),
		SentAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, d := range pattern {
		cmd.PatternMS = append(cmd.PatternMS, d.Milliseconds())
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 1, false, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPager) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
