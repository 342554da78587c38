package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bytesize-travel/service-curation/internal/app"
	"github.com/bytesize-travel/service-curation/internal/config"
	"github.com/bytesize-travel/service-curation/internal/database"
	"github.com/bytesize-travel/service-curation/internal/kafka"
	"github.com/bytesize-travel/service-curation/internal/logger"
	"github.com/bytesize-travel/service-curation/internal/repository"
	"go.uber.org/zap"
)

// environment is the wired graph a command runs against.
type environment struct {
	cfg      *config.ServiceConfig
	services *app.Services
	logger   *zap.Logger
	closers  []func() error
}

func bootstrap() (*environment, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.App.LogLevel
	if debug {
		level = "debug"
	}
	log, err := logger.NewNamed(cfg.App.Env, level, "curator")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	env := &environment{cfg: cfg, logger: log}

	var publisher kafka.Publisher = kafka.NopPublisher{Logger: log}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		env.closers = append(env.closers, producer.Close)
		publisher = producer
	}

	env.services = app.Wire(app.Deps{
		Content:   repository.NewGormContentRepository(db),
		Runs:      repository.NewGormRunRepository(db),
		Publisher: publisher,
		Logger:    log,
		Selection: cfg.Selection,
		Cadences:  cfg.Cadences,
		Policies:  cfg.Policies,
	})

	if sqlDB, err := db.DB(); err == nil {
		env.closers = append(env.closers, sqlDB.Close)
	}
	return env, nil
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
