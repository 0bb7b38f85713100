package main

import (
	"context"
	"fmt"
	"os"

	"mindmap-backend/internal/cli"
	"mindmap-backend/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	return cli.NewRootCmd(cli.NewApp(cfg)).ExecuteContext(context.Background())
}
