package main

import "time"

// OrderEventMessage is the payload published by the API on every successful
// mutation and consumed here.
type OrderEventMessage struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	ActorID    string    `json:"actor_id"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
