package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/YOGESHBOTCHA965/W/internal/infra/app"
	"github.com/YOGESHBOTCHA965/W/internal/infra/config"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file loaded before configuration; missing files are ignored")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "wow-auth: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	// Real environment variables win over the dotenv file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return application.Run(ctx)
}
