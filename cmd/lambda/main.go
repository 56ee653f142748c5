package main

import (
	"context"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/zms-erp/ledgertree/config"
	"github.com/zms-erp/ledgertree/internal/app"
	"github.com/zms-erp/ledgertree/internal/lambda"
)

func main() {
	ctx := context.Background()

	provider, err := config.NewProvider()
	if err != nil {
		logrus.WithError(err).Fatal("failed to create config provider")
	}
	a, err := app.New(ctx, provider)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize application")
	}
	defer a.Close(ctx)

	handler := lambda.NewHandler(a.Router(), a.Logger)
	awslambda.Start(handler.Handle)
}
