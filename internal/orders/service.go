package orders

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procurehq/orderdesk/internal/apperr"
	"github.com/procurehq/orderdesk/internal/auth"
	"github.com/procurehq/orderdesk/internal/idempotency"
	"github.com/procurehq/orderdesk/internal/users"
)

// EventPublisher pushes order lifecycle events to the queue. aws.Publisher
// satisfies it; a nil publisher disables eventing.
type EventPublisher interface {
	SendOrderEvent(ctx context.Context, messageBody string, attributes map[string]string) error
}

// Event types published on successful mutations.
const (
	EventOrderCreated = "order_created"
	EventOrderUpdated = "order_updated"
	EventOrderDeleted = "order_deleted"
	EventCommentAdded = "comment_added"
)

// OrderEvent is the message body published to the events queue.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	ActorID    string    `json:"actor_id"`
	Status     Status    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ServiceConfig groups the dependencies of the lifecycle service.
type ServiceConfig struct {
	Orders *Store
	Users  *users.Store

	// Publisher is optional; nil disables event publishing.
	Publisher EventPublisher

	// Transitions defaults to PermissiveTransitions.
	Transitions TransitionTable

	// IdempotencyTable enables the transactional create path for requests
	// carrying an idempotency key. Empty rejects such requests.
	IdempotencyTable string
	IdempotencyTTL   time.Duration
}

// Service gates every order mutation behind a role check resolved
// read-through from the user directory, and applies mutations atomically
// through the store.
type Service struct {
	orders      *Store
	users       *users.Store
	publisher   EventPublisher
	transitions TransitionTable
	idempTable  string
	idempTTL    time.Duration
	nowFunc     func() time.Time
}

// NewService wires a lifecycle service from its config.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Service{
		orders:      cfg.Orders,
		users:       cfg.Users,
		publisher:   cfg.Publisher,
		transitions: cfg.Transitions,
		idempTable:  cfg.IdempotencyTable,
		idempTTL:    ttl,
		nowFunc:     time.Now,
	}
}

// CreateOrderInput carries the caller-controlled fields of a new order.
// The requester identity always comes from the authenticated subject.
type CreateOrderInput struct {
	Title       string
	Description string
	Priority    Priority
	Quantity    int
	URL         string

	// IdempotencyKey is optional; when set, creation goes through the
	// transactional path and replays are detectable by the caller.
	IdempotencyKey string
}

// Create validates the input, resolves the requester's directory profile and
// persists a new PENDING order.
func (s *Service) Create(ctx context.Context, sub *auth.Subject, in CreateOrderInput) (*Order, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("missing_title", "title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperr.Validation("missing_description", "description is required")
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("invalid_priority", "priority must be one of LOW, MEDIUM, HIGH")
	}
	if in.Quantity <= 0 {
		return nil, apperr.Validation("invalid_quantity", "quantity must be a positive number")
	}

	profile, err := s.users.Get(ctx, sub.ID)
	if err != nil {
		return nil, apperr.Internal("look up requester profile", err)
	}
	if profile == nil {
		return nil, apperr.NotFound("profile_not_found", "no directory profile for requester")
	}

	requester := Requester{UserID: sub.ID, Name: profile.Name, Email: profile.Email}
	// profile fields can be blank on legacy records; fall back to claims
	if requester.Name == "" {
		requester.Name = sub.Name
	}
	if requester.Email == "" {
		requester.Email = sub.Email
	}

	now := s.nowFunc().UTC()
	order := Order{
		OrderID:     uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusPending,
		Priority:    in.Priority,
		RequestedBy: requester,
		Quantity:    in.Quantity,
		URL:         in.URL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.IdempotencyKey != "" {
		if s.idempTable == "" {
			return nil, apperr.Validation("idempotency_unsupported", "idempotency keys are not enabled for this deployment")
		}
		rec := idempotency.NewRecord(in.IdempotencyKey, order.OrderID, sub.ID, now, s.idempTTL)
		if err := s.orders.CreateWithIdempotency(ctx, s.idempTable, rec, order); err != nil {
			if err == ErrDuplicateRequest {
				return nil, apperr.Conflict("duplicate_request", "idempotency key already used")
			}
			return nil, apperr.Internal("create order", err)
		}
	} else {
		if err := s.orders.Create(ctx, order); err != nil {
			return nil, apperr.Internal("create order", err)
		}
	}

	s.publish(ctx, OrderEvent{Type: EventOrderCreated, OrderID: order.OrderID, ActorID: sub.ID, Status: order.Status, OccurredAt: now})
	return &order, nil
}

// Get returns a single order. Read gating is a deployment policy applied at
// the route layer; the service itself never restricts reads.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("get order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	return order, nil
}

// List returns orders sorted by createdAt descending. Scoping policy:
// staff and admin see every order, plain users see only their own.
func (s *Service) List(ctx context.Context, sub *auth.Subject) ([]Order, error) {
	role := users.RoleUser
	profile, err := s.users.Get(ctx, sub.ID)
	if err != nil {
		return nil, apperr.Internal("look up caller profile", err)
	}
	if profile != nil {
		role = profile.Role
	}

	all, err := s.orders.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list orders", err)
	}

	out := all
	if !role.AtLeast(users.RoleStaff) {
		out = out[:0]
		for _, o := range all {
			if o.RequestedBy.UserID == sub.ID {
				out = append(out, o)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies a partial mutation of {status, price, url}. Staff or admin
// only.
func (s *Service) Update(ctx context.Context, sub *auth.Subject, orderID string, upd OrderUpdate) (*Order, error) {
	profile, err := s.callerProfile(ctx, sub)
	if err != nil {
		return nil, err
	}
	if err := requireRole(profile, users.RoleStaff); err != nil {
		return nil, err
	}

	if upd.Empty() {
		return nil, apperr.Validation("no_updatable_fields", "supply at least one of status, price, url")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, apperr.Validation("invalid_status", "unknown status value")
	}
	if upd.Price != nil && *upd.Price < 0 {
		return nil, apperr.Validation("invalid_price", "price must not be negative")
	}

	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("get order", err)
	}
	if current == nil {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}

	if upd.Status != nil && !s.transitions.Allowed(current.Status, *upd.Status) {
		return nil, apperr.Validation("invalid_status_transition", "status transition not allowed")
	}

	if err := s.orders.Update(ctx, orderID, upd); err != nil {
		if err == ErrOrderNotFound {
			return nil, apperr.NotFound("order_not_found", "order not found")
		}
		return nil, apperr.Internal("update order", err)
	}

	updated, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("reload order", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}

	s.publish(ctx, OrderEvent{Type: EventOrderUpdated, OrderID: orderID, ActorID: sub.ID, Status: updated.Status, OccurredAt: s.nowFunc().UTC()})
	return updated, nil
}

// Delete removes an order. Admin only.
func (s *Service) Delete(ctx context.Context, sub *auth.Subject, orderID string) error {
	profile, err := s.callerProfile(ctx, sub)
	if err != nil {
		return err
	}
	if err := requireRole(profile, users.RoleAdmin); err != nil {
		return err
	}

	if err := s.orders.Delete(ctx, orderID); err != nil {
		if err == ErrOrderNotFound {
			return apperr.NotFound("order_not_found", "order not found")
		}
		return apperr.Internal("delete order", err)
	}

	s.publish(ctx, OrderEvent{Type: EventOrderDeleted, OrderID: orderID, ActorID: sub.ID, OccurredAt: s.nowFunc().UTC()})
	return nil
}

// AddComment appends to the order's discussion thread. Any authenticated
// caller may comment; entries are never edited or deleted.
func (s *Service) AddComment(ctx context.Context, sub *auth.Subject, orderID, text string) (*Order, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("empty_comment", "comment must not be blank")
	}

	authorName := sub.Name
	profile, err := s.users.Get(ctx, sub.ID)
	if err != nil {
		return nil, apperr.Internal("look up commenter profile", err)
	}
	if profile != nil && profile.Name != "" {
		authorName = profile.Name
	}
	if authorName == "" {
		authorName = sub.Email
	}
	if authorName == "" {
		authorName = sub.ID
	}

	comment := Comment{
		Text:       text,
		AuthorID:   sub.ID,
		AuthorName: authorName,
		CreatedAt:  s.nowFunc().UTC(),
	}

	if err := s.orders.AppendComment(ctx, orderID, comment); err != nil {
		if err == ErrOrderNotFound {
			return nil, apperr.NotFound("order_not_found", "order not found")
		}
		return nil, apperr.Internal("append comment", err)
	}

	updated, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("reload order", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}

	s.publish(ctx, OrderEvent{Type: EventCommentAdded, OrderID: orderID, ActorID: sub.ID, OccurredAt: comment.CreatedAt})
	return updated, nil
}

func (s *Service) callerProfile(ctx context.Context, sub *auth.Subject) (*users.Profile, error) {
	profile, err := s.users.Get(ctx, sub.ID)
	if err != nil {
		return nil, apperr.Internal("look up caller profile", err)
	}
	return profile, nil
}

// requireRole is the single authorization policy gate for mutations.
func requireRole(p *users.Profile, min users.Role) error {
	if p == nil || !p.Role.AtLeast(min) {
		return apperr.Authorization("insufficient_role", "caller role does not permit this operation")
	}
	return nil
}

// publish sends the event best-effort; a queue failure never fails the
// request that already committed.
func (s *Service) publish(ctx context.Context, evt OrderEvent) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("orders: marshal %s event for order=%s: %v", evt.Type, evt.OrderID, err)
		return
	}
	attrs := map[string]string{
		"event_type": evt.Type,
		"order_id":   evt.OrderID,
	}
	if err := s.publisher.SendOrderEvent(ctx, string(body), attrs); err != nil {
		log.Printf("orders: publish %s event for order=%s failed: %v", evt.Type, evt.OrderID, err)
	}
}
