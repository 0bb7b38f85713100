package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"

	"mindmap-backend/internal/config"
	"mindmap-backend/internal/di"
)

var chiLambda *chiadapter.ChiLambdaV2

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Views are baked into the deployment package.
	cfg.WatchViews = false
	// Nothing scrapes a function; publish to CloudWatch unless told otherwise.
	if _, set := os.LookupEnv("ENABLE_CLOUDWATCH"); !set {
		cfg.EnableCloudWatch = true
	}

	// The container lives as long as the execution environment, so its
	// cleanup never runs.
	container, _, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	chiLambda = chiadapter.NewV2(container.Router)
	container.Logger.Info("Service initialized successfully")
}

func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
