// Package main starts the MQTT subscriber binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ibs-source/mqtt-subscriber/internal/config"
	"github.com/ibs-source/mqtt-subscriber/internal/log"
	"github.com/ibs-source/mqtt-subscriber/internal/metrics"
	"github.com/ibs-source/mqtt-subscriber/internal/mqtt"
	"github.com/ibs-source/mqtt-subscriber/internal/redis"
)

type services struct {
	metrics  *metrics.Metrics
	recorder *redis.Recorder
	manager  *mqtt.Manager
	server   *metrics.Server
}

func run() int {
	logger := log.New()
	logger.Info("Starting MQTT subscriber")

	cfg, err := loadAndLogConfig(logger)
	if err != nil {
		return 1
	}

	svc, err := initializeServices(cfg, logger)
	if err != nil {
		return 1
	}
	defer closeServices(svc, logger)

	return runMainLoop(svc, logger)
}

func loadAndLogConfig(logger *log.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return nil, err
	}
	logger.SetLevel(cfg.Log.Level)

	logger.Info("Configuration loaded successfully")
	logger.Info("MQTT: %s, Client ID: %s, Topic: %s, QoS: %d", cfg.MQTT.BrokerURL(), cfg.MQTT.ClientID, cfg.MQTT.Topic, cfg.MQTT.QoS)
	if cfg.Recorder.Enabled {
		logger.Info("Recorder: %s, Stream: %s", cfg.Recorder.Address, cfg.Recorder.Stream)
	}
	if cfg.Metrics.Address != "" {
		logger.Info("Metrics: %s", cfg.Metrics.Address)
	}
	return cfg, nil
}

func initializeServices(cfg *config.Config, logger *log.Logger) (*services, error) {
	svc := &services{metrics: metrics.New(mqtt.States...)}

	var sink mqtt.Sink
	if cfg.Recorder.Enabled {
		recorder, err := redis.NewRecorder(&cfg.Recorder, logger)
		if err != nil {
			logger.Error("Failed to create Redis recorder: %v", err)
			return nil, err
		}
		svc.recorder = recorder
		sink = recorder
	}

	manager, err := mqtt.NewManager(&cfg.MQTT, sink, svc.metrics, logger)
	if err != nil {
		logger.Error("Failed to create MQTT client: %v", err)
		closeServices(svc, logger)
		return nil, err
	}
	svc.manager = manager

	if cfg.Metrics.Address != "" {
		svc.server = metrics.NewServer(cfg.Metrics.Address, svc.metrics.Registry(), manager.Healthy,
			cfg.Metrics.ShutdownTimeout, logger)
	}

	return svc, nil
}

func closeServices(svc *services, logger *log.Logger) {
	if svc.manager != nil {
		svc.manager.Disconnect()
	}
	if svc.recorder != nil {
		if err := svc.recorder.Close(); err != nil {
			logger.Error("Error closing Redis recorder: %v", err)
		}
	}
}

func runMainLoop(svc *services, logger *log.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	runDone := make(chan error, 1)
	go func() {
		runDone <- svc.manager.Run(ctx)
	}()

	serverDone := make(chan error, 1)
	if svc.server != nil {
		go func() {
			serverDone <- svc.server.Run(ctx)
		}()
	}

	code := 0
	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, initiating graceful shutdown", sig)
		cancel()
		if err := <-runDone; err != nil {
			code = 1
		}

	case err := <-runDone:
		if err != nil {
			logger.Info("Subscriber stopped after failure")
			code = 1
		}

	case err := <-serverDone:
		logger.Error("Metrics server error: %v", err)
		cancel()
		<-runDone
		return 1
	}

	cancel()
	if svc.server != nil {
		if err := <-serverDone; err != nil {
			logger.Error("Metrics server shutdown: %v", err)
		}
	}
	if code == 0 {
		logger.Info("Subscriber stopped")
	}
	return code
}

func main() {
	// Keep main minimal to ensure defers in run() execute correctly.
	os.Exit(run())
}
