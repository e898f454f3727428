package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vnet"
	"vnet/internal/config"
	"vnet/pkg/repl"
)

func main() {
	var configPath string
	switch len(os.Args) {
	case 1:
		// No --config: bring up the standalone default stack.
	case 3:
		if os.Args[1] != "--config" {
			fmt.Printf("Usage: %s [--config <config.yml>]\n", os.Args[0])
			os.Exit(1)
		}
		configPath = os.Args[2]
	default:
		fmt.Printf("Usage: %s [--config <config.yml>]\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("vnetd: %v", err)
	}

	stack, err := netstack.New(cfg, log.Default())
	if err != nil {
		log.Fatalf("vnetd: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := stack.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("vnetd: dispatch loop exited: %v", err)
		}
	}()

	repl.Run(ctx, stack)
}
