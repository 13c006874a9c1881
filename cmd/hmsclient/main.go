package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medisync/realtime/internal/client"
	"github.com/medisync/realtime/internal/config"
	"github.com/medisync/realtime/internal/domain"
	"github.com/medisync/realtime/internal/history"
	"github.com/medisync/realtime/internal/observability"
	"github.com/medisync/realtime/internal/server"
	"github.com/medisync/realtime/internal/session"
	"github.com/medisync/realtime/internal/sink"
	"github.com/medisync/realtime/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	// Observability
	observability.InitLogger(cfg.ServiceName)
	log := observability.Log
	defer log.Sync()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer tp.Shutdown(context.Background())
	}

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	identity := initIdentity(cfg, log)

	// Event sinks
	sinks := sink.Fanout{sink.Log{Logger: log}}
	var asyncs []*sink.Async

	if cfg.RedisAddr != "" {
		redisClient := initRedis(ctx, cfg.RedisAddr, log)
		defer redisClient.Close()
		a := sink.NewAsync("redis", sink.NewRedis(redisClient, cfg.RedisChannelPrefix), sink.QueueSize)
		asyncs = append(asyncs, a)
		sinks = append(sinks, a)
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient := initKafka(cfg, log)
		defer kafkaClient.Close()
		a := sink.NewAsync("kafka", sink.NewKafka(kafkaClient, cfg.KafkaTopic), sink.QueueSize)
		asyncs = append(asyncs, a)
		sinks = append(sinks, a)
	}

	// Messaging client
	var storeOpts []store.Option
	if cfg.StoreCapacity > 0 {
		storeOpts = append(storeOpts, store.WithCapacity(cfg.StoreCapacity))
	}
	if cfg.EchoUpsert {
		storeOpts = append(storeOpts, store.WithEchoUpsert())
	}
	st := store.New(storeOpts...)

	mgr, err := client.New(client.Config{
		PageOrigin:     cfg.PageOrigin,
		Backoff:        client.NewBackoff(cfg.ReconnectPolicy, cfg.ReconnectDelay, cfg.ReconnectMaxDelay, cfg.ReconnectMaxAttempts),
		RequireAuthAck: cfg.RequireAuthAck,
		AuthTimeout:    cfg.AuthTimeout,
	}, client.WithStore(st), client.WithSink(sinks))
	if err != nil {
		log.Fatal("failed to create messaging client", zap.Error(err))
	}
	log.Info("messaging endpoint", zap.String("url", mgr.Endpoint()))

	if identity != nil && cfg.HistoryURL != "" {
		loadHistory(ctx, cfg.HistoryURL, identity.ID, st, log)
	}

	bindDone := make(chan struct{})
	go func() {
		mgr.Bind(ctx, session.Static{Identity: identity})
		close(bindDone)
	}()

	// Status server
	statusSrv := server.New(cfg.ObsHTTPAddr, server.NewRouter(mgr, server.Options{
		ServiceName:    cfg.ServiceName,
		MetricsEnabled: cfg.MetricsEnabled,
		RateLimit:      cfg.RateLimitRequests,
		RateWindow:     cfg.RateLimitWindow,
	}))
	go func() {
		if err := statusSrv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("status server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	<-bindDone
	performGracefulShutdown(statusSrv, mgr, asyncs, log)
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

// initIdentity prefers a signed session token and falls back to the plain
// SESSION_* variables. No identity means the client stays disconnected.
func initIdentity(cfg *config.Config, log *zap.Logger) *session.Identity {
	if cfg.SessionToken != "" {
		id, err := session.FromToken(cfg.SessionToken, cfg.JWTSecret)
		if err != nil {
			log.Fatal("invalid session token", zap.Error(err))
		}
		return id
	}

	id := &session.Identity{ID: cfg.SessionUserID, Role: cfg.SessionRole, Name: cfg.SessionName}
	if err := id.Validate(); err != nil {
		log.Warn("no session identity configured, staying disconnected")
		return nil
	}
	return id
}

func initRedis(ctx context.Context, addr string, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	return client
}

func initKafka(cfg *config.Config, log *zap.Logger) *kgo.Client {
	c, err := sink.NewKafkaClient(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Fatal("failed to create kafka client", zap.Error(err))
	}
	return c
}

func loadHistory(ctx context.Context, baseURL, userID string, st *store.Store, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	msgs, err := history.NewClient(baseURL, nil).Fetch(ctx, userID)
	if err != nil {
		log.Warn("history unavailable, starting with live messages only", zap.Error(err))
		return
	}
	st.Rebuild(func(live []domain.ChatMessage) []domain.ChatMessage {
		return history.Merge(msgs, live)
	})
	log.Info("history loaded", zap.Int("messages", len(msgs)))
}

func performGracefulShutdown(statusSrv *server.Server, mgr *client.Manager, asyncs []*sink.Async, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mgr.Close()
	if err := statusSrv.Shutdown(ctx); err != nil {
		log.Error("error during status server shutdown", zap.Error(err))
	}
	for _, a := range asyncs {
		a.Close()
	}
	log.Info("shutdown complete, exiting")
}
