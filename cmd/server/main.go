package main

import (
	"context"
	"log"

	"github.com/sean-rowe/cwa-weather-proxy/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	if err := application.Start(context.Background()); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	application.WaitForShutdown()
	application.Stop()
}
