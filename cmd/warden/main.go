package main

import (
	"flag"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/whispernet/warden/adapters/events"
	"github.com/whispernet/warden/adapters/store"
	"github.com/whispernet/warden/adapters/tokenizer"
	"github.com/whispernet/warden/adapters/userstore"
	"github.com/whispernet/warden/config"
	"github.com/whispernet/warden/obs"
	"github.com/whispernet/warden/ports"
	"github.com/whispernet/warden/service"
	transport "github.com/whispernet/warden/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    "warden",
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	var (
		users     ports.UserStore
		revoked   ports.Store
		publisher message.Publisher
	)

	wmLogger := watermill.NewStdLogger(false, false)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("failed to parse redis URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			wmLogger,
		)
		if err != nil {
			logger.Fatal("failed to create redis publisher", zap.Error(err))
		}

		users = userstore.NewRedisStore(redisClient)
		revoked = store.NewRedisStore(redisClient)
	} else {
		logger.Warn("no redis configured, using in-memory stores")
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		users = userstore.NewMemoryStore()
		revoked = store.NewMemoryStore()
	}

	authService := service.NewAuthService(
		users,
		tokenizer.NewJWTTokenizer([]byte(cfg.Auth.Secret)),
		revoked,
		events.NewWatermillPublisher(publisher),
		logger,
		service.Config{
			AccessTTL:  cfg.Auth.AccessTTL,
			RefreshTTL: cfg.Auth.RefreshTTL,
		},
	)

	router := transport.SetupRouter(authService, logger)

	logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
	if err := router.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
