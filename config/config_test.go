package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WIDGET_ORG_ID", "")
	t.Setenv("QUEUE_POLL_INTERVAL", "")
	t.Setenv("LOCAL_STORE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Widget.OrgID != "default" {
		t.Fatalf("expected default org, got %q", cfg.Widget.OrgID)
	}
	if cfg.Queue.PollInterval != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %v", cfg.Queue.PollInterval)
	}
	if cfg.Queue.TokenExpiry != time.Hour {
		t.Fatalf("expected 1h token expiry, got %v", cfg.Queue.TokenExpiry)
	}
	if cfg.Queue.JoinRetries != 1 {
		t.Fatalf("expected 1 join retry, got %d", cfg.Queue.JoinRetries)
	}
	if cfg.LocalStore.Driver != LocalStoreSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.LocalStore.Driver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WIDGET_ORG_ID", "cafe-42")
	t.Setenv("QUEUE_POLL_INTERVAL", "10s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("QUEUE_REALTIME_TRANSPORT", "KAFKA")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Widget.OrgID != "cafe-42" {
		t.Fatalf("unexpected org %q", cfg.Widget.OrgID)
	}
	if cfg.Queue.PollInterval != 10*time.Second {
		t.Fatalf("unexpected poll interval %v", cfg.Queue.PollInterval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Queue.RealtimeTransport != TransportKafka {
		t.Fatalf("unexpected transport %q", cfg.Queue.RealtimeTransport)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad driver", func(c *Config) { c.LocalStore.Driver = "cookie" }},
		{"bad transport", func(c *Config) { c.Queue.RealtimeTransport = "carrier-pigeon" }},
		{"empty org", func(c *Config) { c.Widget.OrgID = "  " }},
		{"negative retries", func(c *Config) { c.Queue.JoinRetries = -1 }},
		{"bad permission", func(c *Config) { c.Notify.Permission = "maybe" }},
		{"bad timezone", func(c *Config) { c.Widget.TimeZone = "Mars/Olympus" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{HTTPPort: 8080, GRpcPort: 50056},
		Widget:     WidgetConfig{OrgID: "default", TimeZone: "Local"},
		Postgres:   PostgresConfig{DSN: "postgres://localhost/db"},
		LocalStore: LocalStoreConfig{Driver: LocalStoreMemory},
		Queue: QueueConfig{
			PollInterval:      30 * time.Second,
			TokenExpiry:       time.Hour,
			RealtimeTransport: TransportNone,
		},
		Notify: NotifyConfig{Permission: "default"},
	}
}
