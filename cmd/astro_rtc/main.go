package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rx3lixir/astro_rtc/internal/archive"
	"github.com/rx3lixir/astro_rtc/internal/auth"
	"github.com/rx3lixir/astro_rtc/internal/chat"
	"github.com/rx3lixir/astro_rtc/internal/config"
	"github.com/rx3lixir/astro_rtc/internal/room"
	"github.com/rx3lixir/astro_rtc/internal/server"
	"github.com/rx3lixir/astro_rtc/internal/storage/postgres"
	"github.com/rx3lixir/astro_rtc/internal/storage/s3"
	"github.com/rx3lixir/astro_rtc/internal/websocket"
	"github.com/rx3lixir/astro_rtc/pkg/jwt"
	"github.com/rx3lixir/astro_rtc/pkg/logger"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfigPath = "internal/config/config.yaml"
	shutdownTimeout   = 10 * time.Second
	operatorTokenTTL  = 12 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "astro_rtc: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", os.Getenv("APP_CONFIG_PATH"), "path to the config file")
	hashOnly := pflag.Bool("hash-secret", false, "read an operator secret from stdin, print its bcrypt hash and exit")
	pflag.Parse()

	if *hashOnly {
		return hashSecret(os.Stdin, os.Stdout)
	}

	// Initializing and validating config
	if *configPath == "" {
		*configPath = defaultConfigPath
	}

	cm, err := config.NewConfigManager(*configPath)
	if err != nil {
		return fmt.Errorf("error getting config file: %w", err)
	}
	c := cm.GetConfig()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initializing logger
	log, err := logger.New(logger.Config{
		Env:       c.GeneralParams.Env,
		Level:     c.GeneralParams.LogLevel,
		AddSource: c.GeneralParams.Env == "dev",
	})
	if err != nil {
		return err
	}

	log.Info(
		"Config loaded successfully!",
		"env", c.GeneralParams.Env,
		"http_server_address", c.HttpServerParams.GetAddress(),
		"require_admission", c.SignalingParams.RequireAdmission,
		"database_enabled", c.MainDBParams.Enabled,
		"archive_enabled", c.S3Params.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Chat persistence: Postgres when configured, in-process otherwise
	var store chat.Store
	if c.MainDBParams.Enabled {
		pool, err := postgres.NewPool(ctx, c.MainDBParams.GetDSN())
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		defer pool.Close()

		log.Info("Database connection established", "db", c.MainDBParams.Name, "host", c.MainDBParams.Host)
		store = chat.NewPostgresStore(pool)
	} else {
		log.Warn("database disabled, chat messages are kept in memory only")
		store = chat.NewMemoryStore()
	}

	// Transcript archive
	var archiver *archive.Archiver
	var transcripts websocket.TranscriptArchiver
	if c.S3Params.Enabled {
		client, err := s3.Connect(ctx, s3.Config{
			Endpoint:        c.S3Params.Endpoint,
			AccessKeyID:     c.S3Params.AccessKeyID,
			SecretAccessKey: c.S3Params.SecretAccessKey,
			UseSSL:          c.S3Params.UseSSL,
			BucketName:      c.S3Params.BucketName,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to object storage: %w", err)
		}

		log.Info("Object storage ready", "endpoint", c.S3Params.Endpoint, "bucket", c.S3Params.BucketName)
		archiver = archive.New(client, c.S3Params.BucketName, 0, log.Component("archive"))
		transcripts = archiver
	}

	jwtService := jwt.NewService(
		c.GeneralParams.SecretKey,
		c.SignalingParams.AdmissionTTL(),
		operatorTokenTTL,
	)

	persister := chat.NewPersister(store, chat.PersisterConfig{
		Workers:      c.PersistenceParams.Workers,
		QueueSize:    c.PersistenceParams.QueueSize,
		WriteTimeout: c.PersistenceParams.WriteTimeout(),
	}, log.Component("persister"))
	if err := persister.Start(); err != nil {
		return err
	}

	registry := room.NewRegistry(room.WithHistoryLimit(c.SignalingParams.HistoryLimit))

	hub := websocket.NewHub(
		registry,
		persister,
		transcripts,
		jwtService,
		websocket.HubConfig{RequireAdmission: c.SignalingParams.RequireAdmission},
		log.Component("hub"),
	)

	manager := websocket.NewManager(hub, websocket.ManagerConfig{
		OriginPatterns: c.HttpServerParams.AllowedOrigins,
		SendBuffer:     c.SignalingParams.SendBuffer,
		MaxMessageSize: c.SignalingParams.MaxMessageSize,
	}, log.Component("websocket"))

	router := server.NewRouter(server.RouterConfig{
		WSHandler:   websocket.NewHandler(manager, log.Component("websocket")),
		RoomHandler: room.NewHandler(registry, store, log.Component("rooms"), c.PersistenceParams.WriteTimeout()),
		AuthHandler: auth.NewHandler(jwtService, auth.Operator{
			ID:         c.GeneralParams.OperatorID,
			SecretHash: c.GeneralParams.OperatorSecretHash,
		}, log.Component("auth")),
		OpsHandler: server.NewOpsHandler(hub, persister, archiver, log.Component("ops")),
		Tokens:     jwtService,
		Log:        log.Component("http"),

		AllowedOrigins: c.HttpServerParams.AllowedOrigins,
	})

	httpServer := server.New(c.HttpServerParams.GetAddress(), router, log.Component("http"))

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(hubCtx)
	})

	g.Go(func() error {
		return httpServer.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error

		log.Info("Shutting down HTTP server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}

		// Upgraded sockets are not tracked by http.Server; the hub closes them
		stopHub()
		<-hub.Done()

		if err := persister.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}

		if archiver != nil {
			if err := archiver.Wait(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}

		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}
