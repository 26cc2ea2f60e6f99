package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/ariefcatur/go-catering-orders/internal/checkout"
	"github.com/ariefcatur/go-catering-orders/internal/config"
	"github.com/ariefcatur/go-catering-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-catering-orders/internal/kafka"
	"github.com/ariefcatur/go-catering-orders/internal/metrics"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	"github.com/ariefcatur/go-catering-orders/internal/payment"
	"github.com/ariefcatur/go-catering-orders/internal/postgres"
	"github.com/ariefcatur/go-catering-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg := cfg.NewLogger("api")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one writer for every lifecycle topic
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, lg)
	prod.Start(ctx)

	// Payment processor stays nil without credentials; checkout then answers 503.
	var processor payment.Processor
	if cfg.PaymentConfigured() {
		processor = payment.NewStripeWithURL(cfg.StripeSecretKey, cfg.StripeAPIURL)
	} else {
		lg.Warn("STRIPE_SECRET_KEY not set, checkout and confirmation disabled")
	}
	if cfg.AdminToken == "" {
		lg.Warn("ADMIN_TOKEN not set, admin routes reject every request")
	}

	m := metrics.New("api")
	orderCache := redisx.OrderCache{RDB: rdb, Log: lg}
	svc := &checkout.Service{
		Ledger:    &orders.Repo{DB: db, Timeout: cfg.DBTimeout},
		Processor: processor,
		Events:    checkout.KafkaPublisher{Sink: prod},
		Cache:     orderCache,
		Metrics:   m,
		Log:       lg,
		Config: checkout.Config{
			ServiceName:              cfg.ServiceName,
			Currency:                 cfg.Currency,
			SuccessURL:               cfg.SuccessURL,
			CancelURL:                cfg.CancelURL,
			PaymentTimeout:           cfg.PaymentTimeout,
			TestModeEnabled:          cfg.TestModeEnabled,
			TestModeZeroPriceUnknown: cfg.TestModeZeroPriceUnknown,
		},
	}

	router := httpx.NewRouter(m)
	oh := &httpx.OrdersHandler{
		Service:    svc,
		Menu:       catalog.Menu{DB: db, Timeout: cfg.DBTimeout},
		MenuCache:  redisx.MenuCache{RDB: rdb, Log: lg},
		OrderCache: orderCache,
		Idem:       redisx.Idempotency{RDB: rdb},
		Auth:       httpx.TokenAuth{Token: cfg.AdminToken},
		Log:        lg,
	}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	lg.Info("shutting down")

	// let in-flight handlers finish and publish before the producer closes
	ctx2, cancel2 := context.WithTimeout(context.Background(), httpx.RequestTimeout+5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		lg.Warn("http shutdown", "err", err)
	}
	prod.Close()
	prod.WaitClosed() // flush
	cancel()
}
