package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/procurehq/orderdesk/internal/aws"
)

// Processor consumes order lifecycle events and turns them into CloudWatch
// counters. A bad message body fails the batch so the runtime retries and
// eventually parks it on the DLQ.
type Processor struct {
	metrics *aws.MetricsEmitter
}

// NewProcessor creates a processor emitting into the given namespace.
func NewProcessor(client aws.CloudWatchAPI, namespace string) *Processor {
	return &Processor{
		metrics: aws.NewMetricsEmitter(client, namespace),
	}
}

// Handle receives an SQS batch event and processes each record.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	log.Printf("received %d SQS messages", len(ev.Records))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.Printf("worker error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg OrderEventMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log.Printf("[worker] event type=%s order=%s actor=%s", msg.Type, msg.OrderID, msg.ActorID)

	// Metric failures are logged, not returned: re-driving the message would
	// double-count every event that did get through.
	if err := p.metrics.CountEvent(ctx, msg.Type, msg.Status); err != nil {
		log.Printf("[worker] metric emit failed for order=%s: %v", msg.OrderID, err)
	}
	return nil
}
