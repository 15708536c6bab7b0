package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docuchat/m/v2/app/alerts"
	"docuchat/m/v2/app/api"
	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/db/mongo"
	"docuchat/m/v2/app/db/redis"
	"docuchat/m/v2/app/payments"
	"docuchat/m/v2/app/util"
	"docuchat/m/v2/app/workers"
	"docuchat/m/v2/app/workers/status"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

func main() {
	done := make(chan struct{}, 1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	_ = godotenv.Load()

	env := util.Env("ENV", "dev")
	dataDogClient, err := statsd.New(util.Env("DATADOG_AGENT_ADDRESS", "127.0.0.1:8125"), statsd.WithNamespace("docuchat."))
	if err != nil && env == "production" {
		log.Fatalf("error creating main DataDog client: %v", err)
	}

	config.CONFIG = &config.Config{
		AllowUnverifiedWebhooks: util.EnvBool("ALLOW_UNVERIFIED_WEBHOOKS"),
		AllowedOrigins: []string{
			"http://localhost:5173",
			util.Env("FRONTEND_URL", "http://localhost:5173"),
		},
		DataDogClient:     dataDogClient,
		Environment:       env,
		FrontendURL:       util.Env("FRONTEND_URL", "http://localhost:5173"),
		ListenAddress:     util.Env("LISTEN_ADDRESS", ":3001"),
		MongoDBConnection: util.Env("MONGO_DB_CONNECTION_STRING"),
		MongoDBName:       util.Env("MONGO_DB_NAME", "docuchat"),
		ProMonthlyPriceId: util.Env("PRICE_ID_PRO_MONTHLY", ""),
		Redis: config.Redis{
			Host:     util.Env("REDIS_HOST"),
			Port:     util.Env("REDIS_PORT", "6379"),
			Password: util.Env("REDIS_PASSWORD"),
		},
		ServiceName:            "docuchat-billing",
		SlackBotToken:          util.Env("SLACK_BOT_TOKEN", ""),
		SlackSystemChannel:     util.Env("SLACK_SYSTEM_CHANNEL", ""),
		StatusWorkerInterval:   time.Minute,
		StripeEndpointSecret:   util.Env("STRIPE_ENDPOINT_SECRET", ""),
		StripeToken:            util.Env("STRIPE_TOKEN"),
		TelegramSystemBotToken: util.Env("TELEGRAM_SYSTEM_TOKEN", ""),
		TelegramSystemTo:       util.Env("TELEGRAM_SYSTEM_TO", ""),
	}

	err = dataDogClient.Count("main.start", 1, []string{"env:" + config.CONFIG.Environment}, 1)
	if err != nil {
		log.Errorf("error sending metric: %v", err)
	}
	if config.CONFIG.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{
			DisableTimestamp: true,
		})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
			DisableColors: false,
		})
		log.SetLevel(log.TraceLevel)
	}
	if config.CONFIG.StripeEndpointSecret == "" {
		// loud, not silent: the webhook endpoint refuses events unless the
		// unauthenticated mode was explicitly opted into outside production
		log.Warnf("STRIPE_ENDPOINT_SECRET is not set, webhook authentication unavailable (unverified mode: %t)", config.CONFIG.AllowUnverifiedWebhooks)
	}

	redisClient := redis.NewClient(config.CONFIG.Redis)
	store := mongo.NewClient(config.CONFIG.MongoDBConnection)

	var notifier alerts.Notifier
	if config.CONFIG.IsProduction() {
		notifier, err = alerts.NewSystemNotifier(config.CONFIG)
		if err != nil {
			log.Fatalf("ERROR creating system notifier: %v", err)
		}
	} else {
		notifier = alerts.LogNotifier{}
	}

	gateway := payments.NewStripeGateway(config.CONFIG.StripeToken, config.CONFIG.ServiceName, config.CONFIG.FrontendURL)
	reconciler := payments.NewReconciler(store, gateway, notifier)
	webhookHandler := payments.NewWebhookHandler(reconciler)
	handlers := api.NewHandlers(store, gateway, reconciler)

	// original limits: 5/min for payment endpoints, 100/15min overall
	paymentLimiter := redis.NewRateLimiter(redisClient, "payment", 5, time.Minute)
	apiLimiter := redis.NewRateLimiter(redisClient, "api", 100, 15*time.Minute)

	rtr := router.New()
	rtr.GET("/health", handlers.Health)
	rtr.POST("/checkout", api.RateLimited(paymentLimiter, handlers.Checkout))
	rtr.POST("/verify-payment", api.RateLimited(paymentLimiter, handlers.VerifyPayment))
	rtr.GET("/usage/{user_id}", api.RateLimited(apiLimiter, handlers.Usage))
	rtr.POST("/usage/document", api.RateLimited(apiLimiter, handlers.IncrementDocument))
	rtr.POST("/usage/transcript", api.RateLimited(apiLimiter, handlers.IncrementTranscript))
	// raw body, never pre-parsed: signature verification needs the exact bytes
	rtr.POST("/webhook", webhookHandler.Handle)

	checker := status.NewChecker(store, redisClient, notifier)
	status.WORKER = workers.NewWorker("status", config.CONFIG.StatusWorkerInterval, checker.Run)
	go status.WORKER.Start()

	server := &fasthttp.Server{
		Handler: fasthttp.TimeoutHandler(
			api.CORS(config.CONFIG.AllowedOrigins, rtr.Handler),
			time.Second*30,
			"Request timeout",
		),
	}

	go TearDown(sigs, done, server, store, status.WORKER)

	log.Infof("%s listening on %s (env: %s)", config.CONFIG.ServiceName, config.CONFIG.ListenAddress, config.CONFIG.Environment)
	go func() {
		err := server.ListenAndServe(config.CONFIG.ListenAddress)
		util.Assert(err == nil, "ListenAndServe:", err)
	}()

	<-done
	log.Info("Done")
}

func TearDown(sigs chan os.Signal, done chan struct{}, server *fasthttp.Server, store mongo.Store, statusWorker *workers.Worker) {
	<-sigs
	log.Info("Shutting down..")
	statusWorker.StopWorker()
	if err := server.Shutdown(); err != nil {
		log.Errorf("TearDown: server shutdown: %v", err)
	}
	if err := store.Disconnect(context.Background()); err != nil {
		log.Errorf("TearDown: disconnecting from MongoDB: %v", err)
	}
	done <- struct{}{}
}
