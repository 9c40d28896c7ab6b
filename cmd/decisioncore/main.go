// Command decisioncore is a thin wiring example: it assembles every
// component into one orchestrator.Handler and feeds it one sample event,
// the way cmd/demo wires a runtime.Runtime from its constituent
// parts.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/signalforge/decisioncore/config"
	"github.com/signalforge/decisioncore/cooldown"
	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/dedup"
	"github.com/signalforge/decisioncore/dlq"
	"github.com/signalforge/decisioncore/event"
	"github.com/signalforge/decisioncore/memory"
	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/notify"
	"github.com/signalforge/decisioncore/orchestrator"
	"github.com/signalforge/decisioncore/persistence"
	"github.com/signalforge/decisioncore/policy"
	"github.com/signalforge/decisioncore/reasoning"
	"github.com/signalforge/decisioncore/telemetry"
)

// trendFollowingReasoning is a tiny sample reasoning function: it always
// suggests holding, at a fixed confidence. A real deployment supplies one
// or more modes reflecting its actual strategy logic (spec §6.2).
func trendFollowingReasoning(_ context.Context, ev event.Event, _ memory.Reader) ([]decision.AdvisorySignal, error) {
	confidence := 0.62
	return []decision.AdvisorySignal{
		{
			SignalType: decision.SignalActionSuggestion,
			Payload:    map[string]any{"action": "hold", "symbol": ev.Symbol},
			Confidence: &confidence,
		},
	}, nil
}

func main() {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatTerminal))
	cfg := config.Default()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI()))
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "connect mongo"})
		os.Exit(1)
	}
	defer mongoClient.Disconnect(ctx)

	store, err := persistence.NewMongoStore(ctx, persistence.MongoOptions{
		Client:   mongoClient,
		Database: "decisioncore",
	})
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "construct mongo store"})
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr()})
	defer redisClient.Close()
	cache := persistence.NewRedisCache(redisClient, "")

	metricsRecorder := metrics.NewRecorder(telemetry.NewClueMetrics())
	clueLogger := telemetry.NewClueLogger()

	queue := dlq.New(dlq.Options{
		MaxSize:     cfg.DLQ.MaxSize,
		MaxAttempts: cfg.DLQ.MaxAttempts,
		BaseBackoff: time.Duration(cfg.DLQ.BackoffBaseMs) * time.Millisecond,
		Multiplier:  cfg.DLQ.BackoffMultiplier,
		MaxBackoff:  time.Duration(cfg.DLQ.BackoffMaxMs) * time.Millisecond,
		Metrics:     metricsRecorder,
		Logger:      clueLogger,
	})
	go queue.Run(ctx, store.InsertDecision, time.Second)

	persister := persistence.NewPersister(persistence.PersisterOptions{
		Store:   store,
		Cache:   cache,
		Queue:   queue,
		Metrics: metricsRecorder,
		Logger:  clueLogger,
	})

	remoteBackend := policy.NewRemoteBackend(remoteBackendURL(),
		policy.WithRemoteHTTPClient(&http.Client{Timeout: time.Duration(cfg.Policy.RemoteTimeoutMs) * time.Millisecond}))
	remoteWithBreaker := policy.NewCircuitBreakerBackend("remote", remoteBackend, policy.CircuitBreakerConfig{
		MaxFailures: cfg.Policy.Circuit.FailureThreshold,
		CoolOff:     time.Duration(cfg.Policy.Circuit.CoolOffMs) * time.Millisecond,
		Metrics:     metricsRecorder,
	}, clueLogger)

	policyStore := policy.NewStore([]policy.Backend{
		policy.NewStaticBackend(nil),
		remoteWithBreaker,
		policy.NewDistributedBackend(redisClient, ""),
		policy.NewDefaultBackend(nil),
	}, policy.Options{
		ResultTTL: time.Duration(cfg.Policy.CacheTTLMs) * time.Millisecond,
		Metrics:   metricsRecorder,
		Logger:    clueLogger,
	})

	invoker := reasoning.New(map[string]reasoning.Func{
		cfg.Reasoning.DefaultMode: trendFollowingReasoning,
	}, cfg.Reasoning.DefaultMode)

	fanout := notify.NewFanout(notify.Options{
		MaxConcurrency:    cfg.Notifier.MaxConcurrency,
		Retries:           cfg.Notifier.Retries,
		Timeout:           time.Duration(cfg.Notifier.TimeoutMs) * time.Millisecond,
		BackoffBase:       time.Duration(cfg.Notifier.BackoffBaseMs) * time.Millisecond,
		BackoffMult:       cfg.Notifier.BackoffMultiplier,
		MinWarnConfidence: cfg.MinWarnConfidence,
		NotifyLevel:       notify.Level(cfg.NotifyLevel),
		PacingRPS:         cfg.Notifier.PacingRPS,
		PacingBurst:       cfg.Notifier.PacingBurst,
		Metrics:           metricsRecorder,
		Logger:            clueLogger,
	})

	handler := orchestrator.New(orchestrator.Deps{
		DedupCache: dedup.New(dedup.Options{
			TTL:        time.Duration(cfg.Dedup.TTLMs) * time.Millisecond,
			MaxEntries: cfg.Dedup.MaxEntries,
		}),
		Cooldowns: cooldown.New(),
		Policies:  policyStore,
		Invoker:   invoker,
		Persister: persister,
		Notifier:  fanout,
		Memory:    store,
		Metrics:   metricsRecorder,
		AuditLog:  metrics.NewAuditLog(metrics.DefaultAuditLogSize),
		Logger:    clueLogger,

		ReasoningTimeout: cfg.Reasoning.Timeout(),
		ReasoningMode:    cfg.Reasoning.DefaultMode,
		NotifyChannels: []notify.ChannelConfig{
			{Channel: notify.NewSlackChannel(slackWebhookURL()), Filter: notify.Level(cfg.NotifyLevel)},
		},
	})

	ts := time.Now().UnixMilli()
	result := handler.Handle(ctx, event.Raw{
		EventType: "signal.tick",
		Symbol:    "EURUSD",
		Timeframe: "1h",
		Signal:    map[string]any{"close": 1.0832, "rsi": 54.1},
		TsMs:      &ts,
	})

	fmt.Printf("event_state=%s decision_id=%s processing_time_ms=%d\n",
		result.EventState, result.DecisionID, result.ProcessingTimeMs)
}

func mongoURI() string {
	if v := os.Getenv("DECISIONCORE_MONGO_URI"); v != "" {
		return v
	}
	return "mongodb://localhost:27017"
}

func redisAddr() string {
	if v := os.Getenv("DECISIONCORE_REDIS_ADDR"); v != "" {
		return v
	}
	return "localhost:6379"
}

func remoteBackendURL() string {
	if v := os.Getenv("DECISIONCORE_POLICY_REMOTE_URL"); v != "" {
		return v
	}
	return "http://localhost:8090/policies"
}

func slackWebhookURL() string {
	return os.Getenv("DECISIONCORE_SLACK_WEBHOOK_URL")
}
