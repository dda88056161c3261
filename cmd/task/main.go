package main

import (
	"context"
	"flag"
	"log"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zllovesuki/subtext/auth"
	"github.com/zllovesuki/subtext/broker"
	"github.com/zllovesuki/subtext/db"
	"github.com/zllovesuki/subtext/discount"
	"github.com/zllovesuki/subtext/dispatch"
	"github.com/zllovesuki/subtext/external"
	"github.com/zllovesuki/subtext/gateway"
	"github.com/zllovesuki/subtext/group"
	"github.com/zllovesuki/subtext/notify"
	"github.com/zllovesuki/subtext/notify/telegram"
	"github.com/zllovesuki/subtext/schedule"
	"github.com/zllovesuki/subtext/subscriber"
	"github.com/zllovesuki/subtext/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var environment auth.Environment
	var dotFile string
	var err error

	activationTaskCapable := flag.Bool("activations", false, "task instance will also consume payment activation events")
	flag.Parse()

	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		environment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		environment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(environment),
		Debug:       environment == auth.EnvDevelopment,
	}); err != nil {
		log.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "task",
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

	subscriberManager, err := subscriber.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize SubscriberManager",
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

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))
	smsSender, err := gateway.NewSender(gateway.SenderOptions{
		SMTPAuth: smtpAuth,
		From:     os.Getenv("SMTP_FROM"),
		Hostname: os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SMS gateway sender",
			zap.Error(err),
		)
	}

	var telegramSender dispatch.Sender
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); len(token) > 0 {
		telegramSender, err = telegram.NewSender(telegram.SenderOptions{
			Client: telegram.NewClient(token),
			Logger: logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize Telegram sender",
				zap.Error(err),
			)
		}
	}

	sender, err := notify.NewRouter(notify.RouterOptions{
		SMS:      smsSender,
		Telegram: telegramSender,
	})
	if err != nil {
		logger.Fatal("Cannot initialize delivery router",
			zap.Error(err),
		)
	}

	dispatchTask, err := dispatch.NewTask(dispatch.TaskOptions{
		ScheduleManager:   scheduleManager,
		SubscriberManager: subscriberManager,
		Sender:            sender,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize dispatch task",
			zap.Error(err),
		)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	dispatchTask.Start(ctx)

	// expand the recurring daily messages for every active group shortly
	// after midnight UTC
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc("5 0 * * *", func() {
		groups, err := groupManager.ListActive(ctx)
		if err != nil {
			logger.Error("Cannot list groups for daily expansion",
				zap.Error(err),
			)
			return
		}
		for _, g := range groups {
			results := planner.ExpandDaily(ctx, g.ID, time.Time{})
			for messageType, result := range results {
				if len(result.Error) > 0 {
					logger.Error("Daily expansion failed",
						zap.Uint("GroupID", g.ID),
						zap.String("MessageType", messageType),
						zap.String("Reason", result.Error),
					)
				}
			}
		}
	}); err != nil {
		logger.Fatal("Cannot schedule daily expansion",
			zap.Error(err),
		)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if *activationTaskCapable {
		amqpBroker, err := broker.NewAMQPBroker(logger, os.Getenv("AMQP_URI"))
		if err != nil {
			logger.Fatal("Cannot connect to Broker",
				zap.Error(err),
			)
		}
		defer amqpBroker.Close()

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

		subscriptionTask, err := subscription.NewTask(subscription.TaskOptions{
			SubscriptionManager: subscriptionManager,
			Consumer:            amqpBroker,
			Logger:              logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize subscription task",
				zap.Error(err),
			)
		}
		if err := subscriptionTask.HandleActivations(ctx); err != nil {
			logger.Fatal("Cannot handle activation events",
				zap.Error(err),
			)
		}
		logger.Info("Task instance will consume activation events")
	}

	logger.Info("Dispatch task started")

	<-c
	cancel()

}
