package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/config"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/server"
	"github.com/GriffinCanCode/x11host/internal/lifecycle"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	addr := flag.String("addr", "", "Control API listen address")
	dev := flag.Bool("dev", false, "Development logging")
	background := flag.Bool("background", false, "Start without delivering a resume")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if *configPath != "" {
		if err := os.Setenv(config.FileEnv, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to set %s: %v\n", config.FileEnv, err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Control.Addr = *addr
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger, version)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Run(ctx) }()

	coord := srv.Coordinator()
	for _, event := range startupEvents(*background) {
		dispatch(coord, logger, event)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			event, ok := signalEvent(sig)
			if !ok {
				continue
			}
			logger.Info("Received signal", zap.String("signal", sig.String()), zap.String("event", string(event)))
			dispatch(coord, logger, event)

		case err := <-errChan:
			if err != nil {
				logger.Error("Server error", zap.Error(err))
				srv.Close()
				os.Exit(1)
			}
			logger.Info("Shut down cleanly")
			return
		}
	}
}

// dispatcher accepts lifecycle events
type dispatcher interface {
	Dispatch(kind lifecycle.EventKind) error
}

func dispatch(d dispatcher, logger *logging.Logger, event lifecycle.EventKind) {
	if err := d.Dispatch(event); err != nil {
		logger.Warn("Dropped lifecycle event", zap.String("event", string(event)), zap.Error(err))
	}
}

// startupEvents are delivered once the server is running. A background start
// stays hidden until the first resume signal.
func startupEvents(background bool) []lifecycle.EventKind {
	if background {
		return []lifecycle.EventKind{lifecycle.EventCreated}
	}
	return []lifecycle.EventKind{lifecycle.EventCreated, lifecycle.EventResumed}
}

func signalEvent(sig os.Signal) (lifecycle.EventKind, bool) {
	switch sig {
	case syscall.SIGUSR1:
		return lifecycle.EventPaused, true
	case syscall.SIGUSR2:
		return lifecycle.EventResumed, true
	case syscall.SIGHUP:
		return lifecycle.EventRestartRequested, true
	case syscall.SIGINT, syscall.SIGTERM:
		return lifecycle.EventDestroyed, true
	}
	return "", false
}
