package kafka

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	retryBackoff    = 200 * time.Millisecond
	maxRetryBackoff = 5 * time.Second
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// messageReader is the part of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages out to workers while keeping each partition on a
// single worker, so offsets are handled and committed in order. A message
// whose handler fails is retried with backoff; later offsets of its partition
// wait behind it.
type Consumer struct {
	r       messageReader
	workers int
	backoff time.Duration
	log     *slog.Logger
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{r: r, workers: workers, backoff: retryBackoff, log: log}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(q <-chan kafka.Message) {
			defer wg.Done()
			for m := range q {
				c.process(ctx, h, m)
			}
		}(queues[i])
	}
	stop := func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case queues[queueFor(m, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process runs h until it succeeds, then commits. It gives up only when ctx
// ends, leaving the offset uncommitted for redelivery.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) {
	wait := c.backoff
	for attempt := 1; ctx.Err() == nil; attempt++ {
		err := h(ctx, m)
		if err == nil {
			if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
				c.log.Error("commit offset", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
			}
			return
		}
		c.log.Error("handle message", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset,
			"attempt", attempt, "retry_in", wait.String(), "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetryBackoff)
	}
}

func queueFor(m kafka.Message, n int) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(m.Topic))
	_, _ = f.Write([]byte(strconv.Itoa(m.Partition)))
	return int(f.Sum32() % uint32(n))
}
