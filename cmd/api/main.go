package main

import (
	"log"
	"net/http"
	"net/http/pprof"
	"net/smtp"
	"os"
	"time"

	"github.com/zllovesuki/subtext/auth"
	"github.com/zllovesuki/subtext/broker"
	"github.com/zllovesuki/subtext/db"
	"github.com/zllovesuki/subtext/discount"
	"github.com/zllovesuki/subtext/external"
	"github.com/zllovesuki/subtext/group"
	"github.com/zllovesuki/subtext/plan"
	"github.com/zllovesuki/subtext/schedule"
	"github.com/zllovesuki/subtext/session"
	"github.com/zllovesuki/subtext/subscriber"
	"github.com/zllovesuki/subtext/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var authEnvironment auth.Environment
	var dotFile string
	var err error

	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		authEnvironment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		authEnvironment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(authEnvironment),
		Debug:       authEnvironment == auth.EnvDevelopment,
	}); err != nil {
		log.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	logger = zapsentry.AttachCoreToLogger(core, logger)

	defer logger.Sync()

	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	stripeClient := external.NewStripeClient(os.Getenv("STRIPE_KEY"))

	db, err := db.New(db.Options{
		URI:    os.Getenv("POSTGRES_URI"),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{os.Getenv("REDIS_URI")},
		Password: os.Getenv("REDIS_PW"),
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	amqpBroker, err := broker.NewAMQPBroker(logger, os.Getenv("AMQP_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))

	authManager, err := auth.New(auth.Options{
		Redis:  rdb,
		Logger: logger,

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),

		Environment: authEnvironment,
		SMTPAuth:    smtpAuth,
		From:        os.Getenv("SMTP_FROM"),
		Hostname:    os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		SMSOption: auth.SMSOption{
			Name: os.Getenv("SITE_NAME"),
		},
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	sessionStore, err := session.NewStore(session.Options{
		Redis:  rdb,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SessionStore",
			zap.Error(err),
		)
	}

	subscriberManager, err := subscriber.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize SubscriberManager",
			zap.Error(err),
		)
	}

	planManager, err := plan.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize PlanManager",
			zap.Error(err),
		)
	}

	discountManager, err := discount.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize DiscountManager",
			zap.Error(err),
		)
	}

	groupManager, err := group.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize GroupManager",
			zap.Error(err),
		)
	}

	scheduleManager, err := schedule.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ScheduleManager",
			zap.Error(err),
		)
	}

	subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
		DB:              db,
		StripeClient:    stripeClient,
		DiscountManager: discountManager,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	planner, err := schedule.NewPlanner(schedule.PlannerOptions{
		ScheduleManager:   scheduleManager,
		GroupManager:      groupManager,
		SubscriberManager: subscriberManager,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Planner",
			zap.Error(err),
		)
	}

	scheduleRouter, err := schedule.NewService(schedule.ServiceOptions{
		ScheduleManager: scheduleManager,
		Planner:         planner,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Schedule Service Router",
			zap.Error(err),
		)
	}

	planRouter, err := plan.NewService(plan.ServiceOptions{
		PlanManager: planManager,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Plan Service Router",
			zap.Error(err),
		)
	}

	discountRouter, err := discount.NewService(discount.ServiceOptions{
		DiscountManager: discountManager,
		PlanManager:     planManager,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Discount Service Router",
			zap.Error(err),
		)
	}

	groupRouter, err := group.NewService(group.ServiceOptions{
		GroupManager: groupManager,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Group Service Router",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		Auth:                authManager,
		SessionStore:        sessionStore,
		SubscriberManager:   subscriberManager,
		PlanManager:         planManager,
		DiscountManager:     discountManager,
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	webhookRouter, err := subscription.NewWebhook(subscription.WebhookOptions{
		Producer:             amqpBroker,
		SubscriptionManager:  subscriptionManager,
		Logger:               logger,
		StripeEndpointSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Payment Webhook Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{os.Getenv("SITE_URL")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rootRouter.Mount("/subscriptions", subscriptionRouter.Router())
	rootRouter.Mount("/plans", planRouter.Router())
	rootRouter.Mount("/discounts", discountRouter.Router())
	rootRouter.Mount("/groups", groupRouter.Router())
	rootRouter.Mount("/schedule", scheduleRouter.Router())
	rootRouter.Mount("/webhooks", webhookRouter.Router())

	rootRouter.HandleFunc("/pprof/*", pprof.Index)
	rootRouter.HandleFunc("/pprof/cmdline", pprof.Cmdline)
	rootRouter.HandleFunc("/pprof/profile", pprof.Profile)
	rootRouter.HandleFunc("/pprof/symbol", pprof.Symbol)
	rootRouter.HandleFunc("/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Handler: rootRouter,
		Addr:    ":42069",
	}

	logger.Info("API started")

	log.Fatalln(srv.ListenAndServe())

}
