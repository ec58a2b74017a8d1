// The worker consumes workflow lifecycle events off NATS JetStream and
// writes them to the audit log. Downstream systems (billing, analytics)
// attach their own durable consumers to the same stream.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/philippzach/growth-gpt-sub000/internal/config"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/pkg/events"
	pktNats "github.com/philippzach/growth-gpt-sub000/pkg/nats"
)

func main() {
	cfg := config.Load()
	auditLogger := logger.NewZapLogger("logs/worker.log", cfg.App.Environment == "production")
	defer auditLogger.Sync()

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Subscribe("workflow.>", "workflow-audit", func(ctx context.Context, event events.Event) error {
		auditLogger.Info("Worker", "Workflow event", map[string]interface{}{
			"event_type": event.EventType(),
			"payload":    event.Payload(),
		})
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Worker shutting down")
}
