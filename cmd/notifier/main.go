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

	"github.com/ariefcatur/go-catering-orders/internal/config"
	"github.com/ariefcatur/go-catering-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-catering-orders/internal/kafka"
	"github.com/ariefcatur/go-catering-orders/internal/metrics"
	"github.com/ariefcatur/go-catering-orders/internal/notify"
	"github.com/ariefcatur/go-catering-orders/internal/orders"
	"github.com/ariefcatur/go-catering-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg := cfg.NewLogger("notifier")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	m := metrics.New("notifier")
	svc := &notify.Service{
		Dedup:   redisx.Dedup{RDB: rdb, Service: "notifier"},
		Sender:  notify.LogSender{Log: lg},
		Metrics: m,
		Log:     lg,
	}

	// health + metrics
	srv := &http.Server{Addr: cfg.NotifierMetricsAddr, Handler: httpx.NewRouter(m), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics listener", "err", err)
		}
	}()

	topics := []string{orders.TopicOrderPaid, orders.TopicOrderStatusChanged}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers, lg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		lg.Info("notifier consumer started", "group", cfg.NotifierGroup, "topics", topics, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.HandleMessage); err != nil {
			lg.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	lg.Info("shutting down consumer")
	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		lg.Warn("consumer did not stop in time")
	}
}
