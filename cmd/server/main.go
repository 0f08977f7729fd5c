package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vogiaan1904/tablequeue/config"
	grpcSvc "github.com/vogiaan1904/tablequeue/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/tablequeue/internal/delivery/http"
	"github.com/vogiaan1904/tablequeue/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/tablequeue/internal/infra/postgres"
	"github.com/vogiaan1904/tablequeue/internal/infra/redis"
	"github.com/vogiaan1904/tablequeue/internal/infra/sqlite"
	"github.com/vogiaan1904/tablequeue/internal/notify"
	"github.com/vogiaan1904/tablequeue/internal/realtime"
	"github.com/vogiaan1904/tablequeue/internal/repository"
	"github.com/vogiaan1904/tablequeue/internal/repository/memory"
	pgRepo "github.com/vogiaan1904/tablequeue/internal/repository/postgres"
	redisRepo "github.com/vogiaan1904/tablequeue/internal/repository/redis"
	sqliteRepo "github.com/vogiaan1904/tablequeue/internal/repository/sqlite"
	"github.com/vogiaan1904/tablequeue/internal/service"
	pkgKafka "github.com/vogiaan1904/tablequeue/pkg/kafka"
	pkgLog "github.com/vogiaan1904/tablequeue/pkg/logger"
	"github.com/vogiaan1904/tablequeue/pkg/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})
	defer func() { _ = l.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		l.Fatalf(ctx, "Invalid widget timezone: %v", err)
	}

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			l.Warnf(ctx, "Failed to flush traces: %v", err)
		}
	}()

	// Storage collaborator
	pool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
	}
	defer postgres.Disconnect(pool)

	tokenRepo := pgRepo.NewTokenRepository(pool, l)

	// Local token store
	var kv repository.KVRepository
	switch cfg.LocalStore.Driver {
	case config.LocalStoreSQLite:
		db, err := sqlite.Open(ctx, cfg.LocalStore.SQLitePath)
		if err != nil {
			l.Fatalf(ctx, "Failed to open local store: %v", err)
		}
		defer sqlite.Close(db)
		kv = sqliteRepo.NewKVRepository(db, l)
	case config.LocalStoreRedis:
		redisCli, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(redisCli)
		kv = redisRepo.NewKVRepository(redisCli, l)
	default:
		kv = memory.NewKVRepository()
	}
	store := service.NewTokenStore(kv, cfg.Queue.TokenExpiry, l)

	// Realtime change feed
	var feed realtime.Feed
	switch cfg.Queue.RealtimeTransport {
	case config.TransportPostgres:
		feed = realtime.NewPostgresFeed(pool, cfg.Postgres.NotifyChannel, l)
	case config.TransportKafka:
		feed = consumer.NewChangeFeed(func(groupID string) (sarama.ConsumerGroup, error) {
			return pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
				Brokers:        cfg.Kafka.Brokers,
				GroupID:        groupID,
				ClientID:       cfg.Telemetry.ServiceName,
				SessionTimeout: 10 * time.Second,
			})
		}, cfg.Kafka.ChangeTopic, cfg.Kafka.ConsumerGroupPrefix, l)
	}

	// Notification capabilities
	var vibrator notify.Vibrator = notify.NoopVibrator{}
	if cfg.MQTT.Broker != "" {
		var mqttCli mqtt.Client
		mqttCli, err = notify.ConnectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			l.Warnf(ctx, "Pager unavailable, vibration disabled: %v", err)
		} else {
			pager := notify.NewMQTTPager(mqttCli, cfg.MQTT.Topic)
			defer pager.Close()
			vibrator = pager
		}
	}

	permission := notify.Permission(cfg.Notify.Permission)
	notifier := notify.NewLogNotifier(permission, l)
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookToken, permission)
	}

	health := grpcSvc.NewHealthService(l)

	widget := service.NewWidgetService(tokenRepo, store, feed, vibrator, notifier, l, service.WidgetConfig{
		OrgID:              cfg.Widget.OrgID,
		ServicePeriod:      cfg.Widget.ServicePeriod,
		Location:           loc,
		PollInterval:       cfg.Queue.PollInterval,
		JoinRetries:        cfg.Queue.JoinRetries,
		RealtimeRetryDelay: cfg.Queue.RealtimeRetryDelay,
		OnRealtimeHealth:   health.SetRealtime,
	})

	// Warm the client for the current period so a cached token resumes right away.
	if _, err := widget.Client(ctx, ""); err != nil {
		l.Warnf(ctx, "Failed to start membership client: %v", err)
	}

	// gRPC health server
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}

	gRpcSrv := grpc.NewServer()
	health.Register(gRpcSrv)

	go func() {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			l.Errorf(ctx, "Failed to serve gRPC: %v", err)
		}
	}()

	// http server
	h := httpDelivery.NewHTTPHandler(widget, l)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      otelhttp.NewHandler(h.Routes(), cfg.Telemetry.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalf(ctx, "Failed to serve HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info(ctx, "Server shutting down...")

	health.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		l.Warnf(ctx, "HTTP shutdown: %v", err)
	}

	widget.Close()
	cancel()
	gRpcSrv.GracefulStop()

	l.Info(ctx, "Server exited")
}
