package cmd

import (
	"context"
	"database/sql"
	"time"

	"github.com/IBM/sarama"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/lock"
	"github.com/vibast-solutions/ms-go-course-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-course-checkout/app/notification"
	"github.com/vibast-solutions/ms-go-course-checkout/app/provider"
	"github.com/vibast-solutions/ms-go-course-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-course-checkout/app/service"
	"github.com/vibast-solutions/ms-go-course-checkout/app/tasks"
	"github.com/vibast-solutions/ms-go-course-checkout/config"
)

// application holds the wired collaborators shared by the serve and job commands.
type application struct {
	cfg                *config.Config
	db                 *sql.DB
	redis              *redis.Client
	registry           *prometheus.Registry
	metrics            *metrics.Metrics
	transactionService *service.TransactionService
	taskRunner         *tasks.Runner
}

type appOptions struct {
	withNotifier bool
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustCreateApplication(opts appOptions) (*application, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis is unreachable, checkout locking and rate limiting are degraded")
	}
	cancel()

	taskRepo := repository.NewScheduledTaskRepository(db)
	taskRegistry := tasks.NewRegistry()
	queue := tasks.NewQueue(taskRepo, taskRegistry)

	deps := service.Dependencies{
		Transactions:  repository.NewTransactionRepository(db),
		Notifications: repository.NewPaymentNotificationRepository(db),
		Enrollments:   repository.NewEnrollmentRepository(db),
		Courses:       repository.NewCourseRepository(db),
		Gateway: provider.NewMidtransProvider(provider.MidtransConfig{
			ServerKey:           cfg.Midtrans.ServerKey,
			IsProduction:        cfg.Midtrans.IsProduction,
			BaseURL:             cfg.Midtrans.BaseURL,
			FrontendCallbackURL: cfg.Midtrans.FrontendCallbackURL,
			HTTPTimeout:         cfg.Midtrans.HTTPTimeout,
		}),
		Scheduler: queue,
		Locker:    lock.NewRedisLocker(redisClient, cfg.App.ServiceName+":lock:", cfg.Checkout.LockTTL),
		Metrics:   m,
	}

	var notifier *notification.KafkaNotifier
	if opts.withNotifier {
		notifier = notification.NewLazyKafkaNotifier(func() (sarama.SyncProducer, error) {
			return notification.NewSyncProducer(cfg.Kafka.Brokers)
		}, cfg.Kafka.EmailTopic, cfg.Kafka.ReconnectInterval)
		if err := notifier.Connect(); err != nil {
			logrus.WithError(err).Warn("Kafka producer unavailable, will retry on the next email job")
		}
		deps.Notifier = notifier
	}

	transactionService := service.NewTransactionService(deps, cfg.Checkout)
	if err := transactionService.RegisterTasks(taskRegistry, cfg.Tasks); err != nil {
		logrus.WithError(err).Fatal("Failed to register task handlers")
	}

	runner := tasks.NewRunner(taskRepo, taskRegistry, tasks.RunnerConfig{
		BatchSize: cfg.Tasks.BatchSize,
		Lease:     cfg.Tasks.Lease,
	}, m)

	app := &application{
		cfg:                cfg,
		db:                 db,
		redis:              redisClient,
		registry:           registry,
		metrics:            m,
		transactionService: transactionService,
		taskRunner:         runner,
	}

	cleanup := func() {
		if notifier != nil {
			if err := notifier.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close Kafka producer")
			}
		}
		if err := redisClient.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close Redis client")
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return app, cleanup
}
