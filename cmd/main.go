package main

import (
	"context"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/oauth2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ststudios/whitelist/bot"
	"github.com/ststudios/whitelist/broker"
	"github.com/ststudios/whitelist/cache"
	"github.com/ststudios/whitelist/config"
	"github.com/ststudios/whitelist/db"
	"github.com/ststudios/whitelist/discord"
	"github.com/ststudios/whitelist/notifier"
	"github.com/ststudios/whitelist/server"
	"github.com/ststudios/whitelist/server/sessions"
	"github.com/ststudios/whitelist/server/sse"
	"github.com/ststudios/whitelist/whitelist"
	"github.com/ststudios/whitelist/worker"
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func main() {
	logger := log.StandardLogger()
	if err := config.Load(); err != nil {
		logger.Fatal("Unable to load config: " + err.Error())
	}
	config.Watch(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := newStore(ctx, logger)

	discordClient := discord.NewClient(viper.GetString("discordBotToken"), log.NewEntry(logger))
	sink := notifier.NewDiscordSink(discordClient, log.NewEntry(logger))
	workflow := whitelist.NewWorkflow(store, sink, log.NewEntry(logger))

	// Sessions and the stats cache share one redis pool when configured;
	// without redis, sessions fall back to in-process storage and stats are
	// computed from the store on every request.
	var sessionMgr sessions.Manager = sessions.NewMemoryManager()
	var cacheSvc *cache.Service
	var sseBroker *sse.Broker
	if redisAddr := viper.GetString("redisAddr"); redisAddr != "" {
		pool := cache.NewRedisPool(redisAddr, viper.GetString("redisPassword"))
		sessionMgr = sessions.NewRedisManager(pool)
		sseBroker = sse.NewBroker(log.NewEntry(logger))
		cacheSvc = cache.NewService(pool, store, sseBroker, log.NewEntry(logger))
		go sseBroker.Listen(func() error {
			pushCtx, pushCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer pushCancel()
			return cacheSvc.PushCurrent(pushCtx)
		})
		logger.Info("Redis connection pool established")
	}

	var brokerSvc *broker.Service
	if rabbitmqConn := viper.GetString("rabbitmqConn"); rabbitmqConn != "" && cacheSvc != nil {
		conn, err := amqp.Dial(rabbitmqConn)
		if err != nil {
			logger.Fatal("Unable to connect to rabbitmq: " + err.Error())
		}
		defer conn.Close()
		logger.Info("RabbitMQ connection established")

		brokerSvc, err = broker.NewService(conn, viper.GetString("taskQueueName"), log.NewEntry(logger))
		if err != nil {
			logger.Fatal("Unable to setup broker: " + err.Error())
		}
		defer brokerSvc.Channel.Close()

		eventWorker, err := worker.NewWorker(conn, viper.GetString("taskQueueName"), cacheSvc, log.NewEntry(logger))
		if err != nil {
			logger.Fatal("Unable to setup worker: " + err.Error())
		}
		defer eventWorker.Close()
		var wg sync.WaitGroup
		wg.Add(1)
		go eventWorker.Start(&wg)
		wg.Wait()
	}

	interactions, err := bot.New(workflow, discordClient, brokerSvc, viper.GetString("discordPublicKey"), log.NewEntry(logger))
	if err != nil {
		logger.Fatal("Unable to setup the Discord bot: " + err.Error())
	}
	registerCommands(ctx, discordClient, logger)

	oauthConf := &oauth2.Config{
		ClientID:     viper.GetString("discordClientId"),
		ClientSecret: viper.GetString("discordClientSecret"),
		RedirectURL:  viper.GetString("redirectUri"),
		Scopes:       []string{"identify"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://discord.com/api/oauth2/authorize",
			TokenURL: "https://discord.com/api/oauth2/token",
		},
	}

	httpServer := server.NewService(workflow, sessionMgr, oauthConf, discordClient, server.Options{
		Broker:    brokerSvc,
		Cache:     cacheSvc,
		SSEBroker: sseBroker,
		Bot:       interactions,
	}, log.NewEntry(logger))
	logger.Fatal(httpServer.Listen(viper.GetString("port")))
}

func newStore(ctx context.Context, logger *log.Logger) db.Store {
	switch viper.GetString("storageBackend") {
	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(viper.GetString("mongodbConn")))
		if err != nil {
			logger.Fatal("Unable to connect to mongodb: " + err.Error())
		}
		store, err := db.NewMongoStore(ctx, client)
		if err != nil {
			logger.Fatal("Unable to setup the mongodb store: " + err.Error())
		}
		logger.Info("Mongodb connection established")
		return store
	case config.BackendPostgres:
		gormDB, err := gorm.Open(postgres.Open(viper.GetString("postgresConn")), &gorm.Config{})
		if err != nil {
			logger.Fatal("Unable to connect to postgres: " + err.Error())
		}
		store, err := db.NewPostgresStore(gormDB)
		if err != nil {
			logger.Fatal("Unable to setup the postgres store: " + err.Error())
		}
		logger.Info("Postgres connection established")
		return store
	default:
		logger.Warn("Using the in-memory store, applications will not survive a restart")
		return db.NewMemoryStore()
	}
}

// registerCommands installs the slash command tree. Guild registration
// propagates immediately and is preferred during rollout; global
// registration covers every guild once Discord finishes propagating.
func registerCommands(ctx context.Context, client *discord.Client, logger *log.Logger) {
	appID := viper.GetString("discordApplicationId")
	if appID == "" {
		logger.Warn("discordApplicationId not set, skipping slash command registration")
		return
	}
	var err error
	if guildID := viper.GetString("discordGuildId"); guildID != "" {
		err = client.RegisterGuildCommands(ctx, appID, guildID, bot.Commands())
	} else {
		err = client.RegisterGlobalCommands(ctx, appID, bot.Commands())
	}
	if err != nil {
		logger.Error("Unable to register slash commands: " + err.Error())
		return
	}
	logger.Info("Slash commands registered")
}
