package bootstrap

import (
	"context"
	"log"

	"github.com/philippzach/growth-gpt-sub000/internal/actor"
	"github.com/philippzach/growth-gpt-sub000/internal/config"
	"github.com/philippzach/growth-gpt-sub000/internal/controller"
	"github.com/philippzach/growth-gpt-sub000/internal/handler"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/contract"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/implementation"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/memory"
	"github.com/philippzach/growth-gpt-sub000/internal/service"
	"github.com/philippzach/growth-gpt-sub000/internal/workflow"
	"github.com/philippzach/growth-gpt-sub000/pkg/configloader"
	"github.com/philippzach/growth-gpt-sub000/pkg/llm/factory"

	pktNats "github.com/philippzach/growth-gpt-sub000/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const eventTopic = "workflow-events"

type Container struct {
	// Controllers
	SessionController controller.ISessionController

	// WebSocket upgrade handler
	StreamHandler *handler.StreamHandler

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Exposed for graceful shutdown
	ActorManager *actor.Manager
	Logger       logger.ILogger
}

// NewContainer wires the full dependency graph. db may be nil, in which
// case sessions live in the in-memory store only (dev mode).
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Completion provider and agent configuration
	llmProvider, err := factory.NewProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Ai.OpenAIKey,
		cfg.Ai.AnthropicKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)

	agentLoader := configloader.NewLoader(cfg.Ai.ConfigDir)
	orchestrator := workflow.NewOrchestrator(llmProvider, agentLoader, cfg.Ai.RequestTimeout, sysLogger)

	// 4. Session storage
	var sessionRepo contract.SessionRepository
	if db != nil {
		sessionRepo = implementation.NewSessionRepository(db)
	} else {
		log.Printf("[WARN] No database configured, sessions are held in memory only")
		sessionRepo = memory.NewSessionRepository()
	}

	// 5. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// Redis mirror for multi-instance frame fan-out
	var mirror actor.Mirror
	var redisMirror *actor.RedisMirror
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis, frame mirroring disabled: %v", err)
		} else {
			redisMirror = actor.NewRedisMirror(rdb, sysLogger)
			mirror = redisMirror
		}
	}

	// 6. Session actors
	actorManager := actor.NewManager(
		sessionRepo,
		orchestrator,
		sysLogger,
		mirror,
		cfg.Actor.FlushInterval,
		cfg.Actor.IdleTimeout,
	)
	if redisMirror != nil {
		go redisMirror.Listen(context.Background(), actorManager.DeliverMirrored)
	}

	// 7. Services
	eventService := service.NewEventService(pubSub, eventTopic, sysLogger)
	consumerService := service.NewConsumerService(pubSub, eventTopic, natsPub, sysLogger)

	sessionService := service.NewSessionService(
		actorManager,
		sessionRepo,
		orchestrator,
		agentLoader,
		eventService,
		sysLogger,
	)

	// 8. Handlers and controllers
	streamHandler := handler.NewStreamHandler(actorManager, sysLogger)

	return &Container{
		SessionController: controller.NewSessionController(sessionService),
		StreamHandler:     streamHandler,
		ConsumerService:   consumerService,
		ActorManager:      actorManager,
		Logger:            sysLogger,
	}
}
