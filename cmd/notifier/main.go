package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/neurosupport/carechat/internal/chat"
	"github.com/neurosupport/carechat/internal/config"
	"github.com/neurosupport/carechat/internal/observability"
	"github.com/neurosupport/carechat/internal/store/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

func notifierConcurrency() int {
	v := os.Getenv("NOTIFIER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	logger := observability.Logger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("declare topology: %v", err)
	}

	concurrency := notifierConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	events := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range events {
				var ev chat.EscalationEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.SessionID == "" {
					logger.Error("bad event, sending to dlq", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				notify(workerID, logger, ev)

				if err := d.Ack(false); err != nil {
					logger.Error("ack failed", "worker", workerID, "session", ev.SessionID, "err", err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("notifier shutting down")
			close(events)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			events <- d
		}
	}
}

// notify fans the event out to the on-call therapist channel. For now
// that channel is the structured log stream; a pager or email hook
// slots in here.
func notify(workerID int, logger *slog.Logger, ev chat.EscalationEvent) {
	switch ev.Kind {
	case chat.EventEscalationAccepted:
		logger.Info("escalation accepted",
			"worker", workerID,
			"session", ev.SessionID,
			"record", ev.RecordID,
			"appointment", ev.AppointmentID,
		)
	default:
		logger.Info("escalation created",
			"worker", workerID,
			"session", ev.SessionID,
			"record", ev.RecordID,
			"reason", ev.Reason,
		)
	}
}
