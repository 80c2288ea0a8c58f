package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dalemusser/taskhub/internal/app/bootstrap"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (default ./config.yaml if present)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx, *configFile); err != nil {
		log.Fatal(err)
	}
}
