package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/fabianMendez/luxflix/pkg/app"
)

func main() {
	a, err := app.Load()
	if err != nil {
		log.Fatal(err)
	}

	lambda.Start(a.Handler.Webhook)
}
