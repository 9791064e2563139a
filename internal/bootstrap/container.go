package bootstrap

import (
	"context"
	"fmt"

	"docqa-be/internal/config"
	"docqa-be/internal/controller"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/repository/contract"
	"docqa-be/internal/repository/implementation"
	"docqa-be/internal/repository/memory"
	"docqa-be/internal/service"
	"docqa-be/pkg/database"
	"docqa-be/pkg/events"
	"docqa-be/pkg/index"
	llmfactory "docqa-be/pkg/llm/factory"
	pktNats "docqa-be/pkg/nats"
	"docqa-be/pkg/rag/response"
	"docqa-be/pkg/retrieval"
	retrievalfactory "docqa-be/pkg/retrieval/factory"
	"docqa-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// StaticURL is where page images under the static folder are served.
const StaticURL = "/static/images"

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	ChatController    controller.IChatController

	// Background Services (Exposed for main.go to run)
	CleanupService service.ICleanupService

	Cache     *index.Cache
	Lifecycle *session.Lifecycle
	Logger    logger.ILogger

	cfg     *config.Config
	natsSub *pktNats.Subscriber
	closers []func()
}

type Option func(*overrides)

type overrides struct {
	logger    logger.ILogger
	repo      contract.SessionRepository
	backend   retrieval.Backend
	generator service.ResponseGenerator
}

func WithLogger(l logger.ILogger) Option {
	return func(o *overrides) { o.logger = l }
}

func WithSessionRepository(r contract.SessionRepository) Option {
	return func(o *overrides) { o.repo = r }
}

func WithRetrievalBackend(b retrieval.Backend) Option {
	return func(o *overrides) { o.backend = b }
}

func WithResponseGenerator(g service.ResponseGenerator) Option {
	return func(o *overrides) { o.generator = g }
}

func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	o := &overrides{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Container{cfg: cfg}

	// 1. Core Facades
	sysLogger := o.logger
	if sysLogger == nil {
		sysLogger = logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	}
	c.Logger = sysLogger

	// 2. Session storage
	repo := o.repo
	if repo == nil {
		var err error
		repo, err = c.newSessionRepository()
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	store := session.NewStore(repo, nil)

	// 3. Retrieval
	backend := o.backend
	if backend == nil {
		var err error
		backend, err = retrievalfactory.NewBackend(cfg.Retrieval.Backend,
			retrieval.WithBaseURL(cfg.Retrieval.ServiceURL),
			retrieval.WithTimeout(cfg.Retrieval.IndexTimeout),
			retrieval.WithDefaultModel(cfg.Retrieval.IndexerModel),
		)
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	sysLogger.Info("Bootstrap", "Retrieval backend ready", map[string]interface{}{"backend": backend.Name()})

	dir, err := index.NewDirectory(cfg.Storage.IndexFolder)
	if err != nil {
		c.Close()
		return nil, err
	}
	cache := index.NewCache(dir, backend, sysLogger,
		index.WithLoadWorkers(cfg.Retrieval.LoadWorkers),
		index.WithLoadTimeout(cfg.Retrieval.LoadTimeout),
	)
	c.Cache = cache
	c.closers = append(c.closers, cache.Close)

	// 4. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	var sessionEvents events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			sessionEvents = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsSub = natsSub
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// 5. Lifecycle
	lifecycle := session.NewLifecycle(store, dir, cache, sysLogger,
		session.WithIndexer(backend),
		session.WithIndexWorkers(cfg.Retrieval.IndexWorkers),
		session.WithIndexTimeout(cfg.Retrieval.IndexTimeout),
		session.WithUploadRoot(cfg.Storage.UploadFolder),
		session.WithImageRoot(cfg.Storage.StaticFolder),
		session.WithEventPublisher(sessionEvents),
		session.WithCleanupPublisher(events.NewWatermillPublisher(pubSub, events.CleanupTopic)),
		session.WithOrigin(cfg.App.InstanceId),
	)
	c.Lifecycle = lifecycle

	// 6. Generation
	generator := o.generator
	if generator == nil {
		registry := llmfactory.NewRegistry(llmfactory.Settings{
			OpenAIKey:      cfg.Keys.OpenAI,
			DashscopeKey:   cfg.Keys.Dashscope,
			MistralKey:     cfg.Keys.Mistral,
			GroqKey:        cfg.Keys.Groq,
			GeminiKey:      cfg.Keys.Gemini,
			AnthropicKey:   cfg.Keys.Anthropic,
			HuggingFaceKey: cfg.Keys.HuggingFace,
			OllamaURL:      cfg.Generation.OllamaBaseURL,
			Overrides:      cfg.Generation.ModelOverrides,
		})
		generator = response.NewGenerator(registry, cfg.Storage.StaticFolder, sysLogger)
	}

	// 7. Services
	tokens := serverutils.NewSessionTokens(cfg.App.JWTSecret, cfg.App.TokenTTL)
	sessionService := service.NewSessionService(lifecycle)
	chatService := service.NewChatService(lifecycle, generator, cfg, StaticURL, sysLogger)
	c.CleanupService = service.NewCleanupService(
		pubSub,
		events.CleanupTopic,
		store,
		dir,
		cache,
		[]string{cfg.Storage.UploadFolder, cfg.Storage.StaticFolder},
		sysLogger,
	)

	// 8. Controllers
	c.SessionController = controller.NewSessionController(sessionService, tokens)
	c.ChatController = controller.NewChatController(chatService, tokens)

	return c, nil
}

func (c *Container) newSessionRepository() (contract.SessionRepository, error) {
	switch c.cfg.Storage.SessionBackend {
	case "file", "":
		return implementation.NewFileSessionRepository(c.cfg.Storage.SessionFolder)
	case "memory":
		return memory.NewSessionRepository(), nil
	case "redis":
		rdb, err := database.NewRedisClient(c.cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		return implementation.NewRedisSessionRepository(rdb), nil
	case "postgres":
		db, err := database.NewGormDBFromDSN(c.cfg.Storage.DBConnection)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, func() { _ = sqlDB.Close() })
		}
		return implementation.NewGormSessionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", c.cfg.Storage.SessionBackend)
	}
}

// Start warms the model cache and starts the event consumers.
func (c *Container) Start(ctx context.Context) error {
	if err := c.CleanupService.Consume(ctx); err != nil {
		return fmt.Errorf("start cleanup consumer: %w", err)
	}

	if c.natsSub != nil {
		durable := "docqa-cache-" + c.cfg.App.InstanceId
		handler := service.NewSessionEventHandler(c.Cache, c.cfg.App.InstanceId, c.Logger)
		if err := c.natsSub.Subscribe(ctx, pktNats.SubjectPrefix+"session.>", durable, handler); err != nil {
			c.Logger.Warn("Bootstrap", "Failed to subscribe to session events", map[string]interface{}{"error": err.Error()})
		}
	}

	if c.cfg.Retrieval.WarmOnStartup {
		c.Cache.Warm(ctx, c.cfg.Retrieval.LoadWorkers)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}
