package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/cli"
	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
)

func main() {
	configureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCmd(config.NewSettings()).ExecuteContext(ctx)
	stop()

	var exitErr *cli.ExitError
	switch {
	case errors.As(err, &exitErr):
		os.Exit(int(exitErr.Code))
	case err != nil:
		// unknown subcommands and stray arguments
		logrus.Error(err)
		os.Exit(int(harness.ExitInvalidParam))
	}
}

// configureLogging sets the defaults for messages logged before a demo has
// its own logger.
func configureLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
}
