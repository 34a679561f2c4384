package bootstrap

import (
	"context"
	"fmt"
	"time"

	"ai-editor-be/internal/config"
	"ai-editor-be/internal/controller"
	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/internal/pkg/serverutils"
	"ai-editor-be/internal/repository/contract"
	"ai-editor-be/internal/repository/implementation"
	"ai-editor-be/internal/repository/memory"
	"ai-editor-be/internal/service"
	"ai-editor-be/pkg/ai/breaker"
	"ai-editor-be/pkg/ai/cache"
	"ai-editor-be/pkg/ai/classifier"
	"ai-editor-be/pkg/ai/doccontext"
	"ai-editor-be/pkg/ai/executor"
	"ai-editor-be/pkg/ai/fastpath"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/ai/router"
	"ai-editor-be/pkg/ai/sanitize"
	"ai-editor-be/pkg/ai/session"
	"ai-editor-be/pkg/ai/validator"
	"ai-editor-be/pkg/events"
	"ai-editor-be/pkg/llm"
	"ai-editor-be/pkg/llm/factory"

	pktNats "ai-editor-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const redisNamespace = "ai-editor:"

type Container struct {
	// Controllers
	AssistantController controller.IAssistantController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Pipeline *pipeline.Pipeline
	Logger   logger.ILogger

	closers []func()
}

// Option overrides a collaborator, mainly for tests
type Option func(*options)

type options struct {
	provider llm.LLMProvider
	logger   logger.ILogger
}

// WithLLMProvider skips the provider factory
func WithLLMProvider(p llm.LLMProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithLogger replaces the zap file logger
func WithLogger(l logger.ILogger) Option {
	return func(o *options) { o.logger = l }
}

func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{}

	// 1. Core Facades
	sysLogger := o.logger
	if sysLogger == nil {
		zl := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
		c.closers = append(c.closers, func() { _ = zl.Sync() })
		sysLogger = zl
	}
	c.Logger = sysLogger

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NopLogger{})
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	publishers := events.MultiPublisher{events.NewBus(pubSub, events.DefaultTopic)}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			publishers = append(publishers, natsPub)
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// 3. Store
	store, evictions, err := c.newStore(cfg, sysLogger)
	if err != nil {
		c.Close()
		return nil, err
	}

	sessions := session.NewManager(store, session.Config{
		IdleTTL:    cfg.Assistant.SessionTTL,
		PendingTTL: cfg.Assistant.PendingTTL,
	}, sysLogger)
	if evictions != nil {
		evictions.OnEvicted(sessions.HandleEviction)
	}

	tiers := cache.NewTwoTierCache(store, cache.Config{
		L2TTL:   cfg.Assistant.CacheTTL,
		LockTTL: cfg.Assistant.LockTTL,
	}, sysLogger)
	sessions.OnReset(func(ctx context.Context, sessionID string) {
		if err := tiers.ClearL1(ctx, sessionID); err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to clear L1 cache", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
	})

	cb := breaker.New("llm", breaker.Config{
		FailureThreshold: cfg.Assistant.BreakerFailureThreshold,
		RecoveryTimeout:  cfg.Assistant.BreakerRecoveryTimeout,
		HalfOpenMaxCalls: cfg.Assistant.BreakerHalfOpenMaxCalls,
		OnStateChange: func(name string, from, to breaker.Status, reason string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := publishers.Publish(ctx, events.NewCircuitStateChanged(name, string(from), string(to), reason)); err != nil {
				sysLogger.Warn("BOOTSTRAP", "Failed to publish circuit event", map[string]interface{}{"error": err.Error()})
			}
		},
	}, sysLogger)

	// 4. Model collaborators
	provider := o.provider
	if provider == nil {
		provider, err = factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.ExecutorModel, cfg.Ai.BaseURL, cfg.Ai.APIKey)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
		}
	}
	if cfg.Ai.TrafficLogPath != "" {
		traffic := logger.NewIsolatedLogger(cfg.Ai.TrafficLogPath)
		c.closers = append(c.closers, func() { _ = traffic.Sync() })
		provider = llm.NewTrafficLogger(provider, traffic)
	}
	sysLogger.Info("BOOTSTRAP", "Using LLM provider", map[string]interface{}{
		"provider":         cfg.Ai.LLMProvider,
		"classifier_model": cfg.Ai.ClassifierModel,
		"executor_model":   cfg.Ai.ExecutorModel,
	})

	classifierConfig := classifier.Config{Model: cfg.Ai.ClassifierModel}
	executorConfig := executor.DefaultConfig()
	executorConfig.Model = cfg.Ai.ExecutorModel

	// 5. Deterministic stages
	patterns, err := fastpath.LoadPatterns(cfg.Assistant.PatternsPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load fast path patterns: %w", err)
	}
	gate, err := fastpath.NewGate(patterns, sysLogger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build fast path gate: %w", err)
	}

	thresholds := intent.Thresholds{
		intent.ModeInformational:  cfg.Assistant.ThresholdInformational,
		intent.ModeLocate:         cfg.Assistant.ThresholdLocate,
		intent.ModeTargetedUpdate: cfg.Assistant.ThresholdTargeted,
		intent.ModeFullRewrite:    cfg.Assistant.ThresholdFullRewrite,
	}

	c.Pipeline = pipeline.New(pipeline.Deps{
		Sanitizer:  sanitize.New(sysLogger),
		Context:    doccontext.New(doccontext.DefaultConfig()),
		Classifier: classifier.New(provider, classifierConfig, sysLogger),
		Executors:  executor.NewLLMRegistry(provider, executorConfig, sysLogger),
		Gate:       gate,
		Cache:      tiers,
		Breaker:    cb,
		Sessions:   sessions,
		Validator:  validator.New(thresholds, cfg.Assistant.MaxEdits, sysLogger),
		Router:     router.NewRouter(thresholds, sessions, sysLogger),
		Publisher:  publishers,
	}, pipeline.Config{
		ClassifierTimeout: cfg.Assistant.ClassifierTimeout,
		ExecutorTimeout:   cfg.Assistant.ExecutorTimeout,
		PipelineTimeout:   cfg.Assistant.PipelineTimeout,
		LockWait:          cfg.Assistant.LockWait,
		PublishTimeout:    pipeline.DefaultConfig().PublishTimeout,
	}, sysLogger)

	// 6. Services & Controllers
	c.ConsumerService = service.NewConsumerService(pubSub, events.DefaultTopic, sysLogger)
	assistantService := service.NewAssistantService(c.Pipeline, sessions, cb, tiers, c.ConsumerService, cfg.Store.Backend, sysLogger)

	var limiter *serverutils.RateLimiter
	if cfg.App.RateLimitPerMinute > 0 {
		limiter = serverutils.NewRateLimiter(cfg.App.RateLimitPerMinute, cfg.App.RateLimitBurst)
	}
	if cfg.Auth.JwtSecret == "" {
		sysLogger.Warn("BOOTSTRAP", "JWT_SECRET is empty, authentication is disabled", nil)
	}
	c.AssistantController = controller.NewAssistantController(
		assistantService,
		serverutils.NewJwtMiddleware(cfg.Auth.JwtSecret),
		limiter,
	)

	return c, nil
}

type evictionNotifier interface {
	OnEvicted(fn func(key string))
}

// newStore builds the KVStore backend; only the in-process backend reports evictions
func (c *Container) newStore(cfg *config.Config, log logger.ILogger) (contract.KVStore, evictionNotifier, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		store := memory.NewKVStore(cfg.Assistant.SessionTTL, cfg.Store.CleanupInterval)
		return store, store, nil

	case "redis":
		opt, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.Store.RedisURL}
		}
		rdb := redis.NewClient(opt)
		c.closers = append(c.closers, func() { _ = rdb.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("BOOTSTRAP", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		return implementation.NewRedisKVStore(rdb, redisNamespace, cfg.Assistant.SessionTTL), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

// Close releases connections in reverse order of creation
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
