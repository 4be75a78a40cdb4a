package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"

	"github.com/nimblebank/cardissuer/issuance"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	config, err := issuance.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("loading config", "err", err)
		os.Exit(1)
	}

	app := issuance.NewApp(logger, config)
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}
