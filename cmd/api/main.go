package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"blocksim/api"
	"blocksim/logger"
	"blocksim/store"
)

var log = logger.Logger

func main() {
	// Logger is automatically initialized via init() function

	app := &cli.App{
		Name:        "blocksim-api",
		Usage:       "REST API server for archived simulation runs",
		Description: "Provides HTTP endpoints to browse simulation runs archived by blocksim",
		Version:     "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   "8080",
				Usage:   "Port to run the API server on",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Value:   "./data",
				Usage:   "Directory holding the run archive",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
			},
		},
		Action: runAPIServer,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.WithError(err).Fatal("Application failed")
	}
}

func runAPIServer(c *cli.Context) error {
	port := c.String("port")
	logLevel := c.String("log-level")

	// Set log level
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	dataDir := c.String("data-dir")
	log.WithFields(logrus.Fields{
		"port":     port,
		"dataDir":  dataDir,
		"logLevel": level,
		"version":  c.App.Version,
	}).Info("Starting Blocksim Results API Server")

	archive, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}

	server := api.NewServer(port, archive)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigChan
		log.WithField("signal", sig).Info("Received shutdown signal")

		if err := server.Stop(); err != nil {
			log.WithError(err).Error("Error stopping server")
		}
		if err := archive.Close(); err != nil {
			log.WithError(err).Error("Error closing run archive")
		}

		log.Info("Server stopped gracefully")
		os.Exit(0)
	}()

	// Start the server (this blocks)
	log.WithField("port", port).Info("API server starting...")
	err = server.Start()
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}
