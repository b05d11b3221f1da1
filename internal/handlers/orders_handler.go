package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procurehq/orderdesk/internal/apperr"
	"github.com/procurehq/orderdesk/internal/auth"
	"github.com/procurehq/orderdesk/internal/aws"
	"github.com/procurehq/orderdesk/internal/idempotency"
	"github.com/procurehq/orderdesk/internal/orders"
	"github.com/procurehq/orderdesk/internal/users"
	"github.com/procurehq/orderdesk/internal/validation"
)

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	DynamoDBClient aws.DynamoDBAPI
	SQSClient      aws.SQSAPI // optional; nil disables event publishing
	Verifier       *auth.Verifier

	OrdersTable      string
	UsersTable       string
	IdempotencyTable string
	QueueURL         string
	TTLWindow        time.Duration

	// AllowPublicReads exposes GET /orders/:id without a credential.
	AllowPublicReads bool
	// StrictTransitions turns on the restricted status transition table.
	StrictTransitions bool
}

// RegisterOrdersRoutes registers routes for the order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	ordersStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	usersStore := users.NewStore(cfg.DynamoDBClient, cfg.UsersTable)

	var idempStore *idempotency.Store
	if cfg.IdempotencyTable != "" {
		idempStore = idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable)
	}

	var publisher orders.EventPublisher
	if cfg.SQSClient != nil && cfg.QueueURL != "" {
		publisher = aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)
	}

	transitions := orders.PermissiveTransitions()
	if cfg.StrictTransitions {
		transitions = orders.StrictTransitions()
	}

	svc := orders.NewService(orders.ServiceConfig{
		Orders:           ordersStore,
		Users:            usersStore,
		Publisher:        publisher,
		Transitions:      transitions,
		IdempotencyTable: cfg.IdempotencyTable,
		IdempotencyTTL:   cfg.TTLWindow,
	})

	authn := auth.Middleware(cfg.Verifier)

	r.GET("/orders", authn, func(c *gin.Context) {
		sub, ok := auth.SubjectFrom(c)
		if !ok {
			respondError(c, apperr.Authentication("missing_credentials", "authentication required"))
			return
		}
		list, err := svc.List(c.Request.Context(), sub)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	r.POST("/orders", authn, func(c *gin.Context) {
		ctx := c.Request.Context()
		sub, ok := auth.SubjectFrom(c)
		if !ok {
			respondError(c, apperr.Authentication("missing_credentials", "authentication required"))
			return
		}

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		idempKey := c.GetHeader("Idempotency-Key")

		order, err := svc.Create(ctx, sub, orders.CreateOrderInput{
			Title:          req.Title,
			Description:    req.Description,
			Priority:       orders.Priority(req.Priority),
			Quantity:       req.Quantity,
			URL:            req.URL,
			IdempotencyKey: idempKey,
		})
		if err != nil {
			if idempKey != "" && idempStore != nil && apperr.Code(err) == "duplicate_request" {
				replayIdempotent(c, idempStore, idempKey)
				return
			}
			respondError(c, err)
			return
		}

		body := gin.H{"order_id": order.OrderID, "status": order.Status}
		if idempKey != "" && idempStore != nil {
			// store the response so duplicates replay it; if that write fails,
			// mark the record FAILED so retries see a terminal state instead
			// of replaying IN_PROGRESS until the TTL
			stored, _ := json.Marshal(body)
			if err := idempStore.MarkDone(ctx, idempKey, string(stored), http.StatusCreated); err != nil {
				log.Printf("orders: mark idempotency done key=%s: %v", idempKey, err)
				if ferr := idempStore.MarkFailed(ctx, idempKey, "response could not be recorded"); ferr != nil {
					log.Printf("orders: mark idempotency failed key=%s: %v", idempKey, ferr)
				}
			}
		}

		c.Header("Location", fmt.Sprintf("/orders/%s", order.OrderID))
		c.JSON(http.StatusCreated, body)
	})

	getOrder := func(c *gin.Context) {
		order, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
	if cfg.AllowPublicReads {
		r.GET("/orders/:id", getOrder)
	} else {
		r.GET("/orders/:id", authn, getOrder)
	}

	r.PATCH("/orders/:id", authn, func(c *gin.Context) {
		sub, ok := auth.SubjectFrom(c)
		if !ok {
			respondError(c, apperr.Authentication("missing_credentials", "authentication required"))
			return
		}

		var req validation.UpdateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		upd := orders.OrderUpdate{Price: req.Price, URL: req.URL}
		if req.Status != nil {
			st := orders.Status(*req.Status)
			upd.Status = &st
		}

		order, err := svc.Update(c.Request.Context(), sub, c.Param("id"), upd)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.DELETE("/orders/:id", authn, func(c *gin.Context) {
		sub, ok := auth.SubjectFrom(c)
		if !ok {
			respondError(c, apperr.Authentication("missing_credentials", "authentication required"))
			return
		}
		if err := svc.Delete(c.Request.Context(), sub, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	r.POST("/orders/:id/comments", authn, func(c *gin.Context) {
		sub, ok := auth.SubjectFrom(c)
		if !ok {
			respondError(c, apperr.Authentication("missing_credentials", "authentication required"))
			return
		}

		var req validation.AddCommentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		order, err := svc.AddComment(c.Request.Context(), sub, c.Param("id"), req.Comment)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	})
}

// replayIdempotent answers a duplicate create according to the state of the
// stored idempotency record.
func replayIdempotent(c *gin.Context, idempStore *idempotency.Store, key string) {
	rec, err := idempStore.Get(c.Request.Context(), key)
	if err != nil {
		respondError(c, apperr.Internal("idempotency check", err))
		return
	}
	if rec == nil {
		respondError(c, apperr.Internal("transaction failed but no idempotency record found", nil))
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
	case idempotency.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "order_id": rec.OrderID})
	default:
		respondError(c, apperr.Internal("unknown idempotency status "+rec.Status, nil))
	}
}

// respondError maps a service error onto the HTTP response, masking
// internal detail from clients and keeping it in the logs.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": apperr.Code(err), "msg": apperr.ClientMessage(err)})
}
