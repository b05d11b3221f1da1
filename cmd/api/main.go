package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/procurehq/orderdesk/internal/auth"
	"github.com/procurehq/orderdesk/internal/aws"
	"github.com/procurehq/orderdesk/internal/config"
	"github.com/procurehq/orderdesk/internal/handlers"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, cfg)
	handlers.RegisterUsersRoutes(r, cfg)

	return r
}

func main() {
	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient:    clients.DynamoDB,
		SQSClient:         clients.SQS,
		Verifier:          auth.NewVerifier([]byte(appCfg.JWTSecret), appCfg.JWTIssuer),
		OrdersTable:       appCfg.OrdersTable,
		UsersTable:        appCfg.UsersTable,
		IdempotencyTable:  appCfg.IdempotencyTable,
		QueueURL:          appCfg.EventsQueueURL,
		TTLWindow:         appCfg.IdempotencyTTL,
		AllowPublicReads:  appCfg.AllowPublicReads,
		StrictTransitions: appCfg.StrictTransitions,
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		log.Printf("running local server on %s", appCfg.Addr)
		if err := r.Run(appCfg.Addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
