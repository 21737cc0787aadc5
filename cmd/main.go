package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"eventhub/cmd/buildCFG"
	"eventhub/internal/api/api"
	"eventhub/internal/auth"
	rabbitReader "eventhub/internal/consumerWorker"
	"eventhub/internal/credential"
	"eventhub/internal/mailer"
	"eventhub/internal/notifier"
	"eventhub/internal/payment"
	"eventhub/internal/rabbit"
	"eventhub/internal/repo"
	"eventhub/internal/service"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the configuration file")
	envPath := pflag.String("env", "", "optional .env file with overrides")
	pflag.Parse()

	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load(*configPath, *envPath, "EVENTHUB"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)
	timeouts := buildCFG.BuildTimeouts(cfg, &log)

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewPostgresRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	migrations := buildCFG.BuildMigrationConfig(cfg)
	migrationPath := migrations.Dir
	if !filepath.IsAbs(migrationPath) {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot get working directory")
		}
		migrationPath = filepath.Join(cwd, migrationPath)
	}
	if err := repository.MigrateUp(context.Background(), migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue, &log)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()

	redisCfg := buildCFG.BuildRedisConfig(cfg, &log)
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Redis ping failed")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	hub := notifier.NewHub(&log)
	broadcaster := notifier.NewRedisBroadcaster(rdb, hub, &log)
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		if err := broadcaster.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("realtime relay stopped")
		}
	}()

	credentialSecret, err := buildCFG.BuildCredentialSecret(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid credential config")
	}
	authCfg, err := buildCFG.BuildAuthConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid auth config")
	}
	paymentCfg := buildCFG.BuildPaymentConfig(cfg, &log)
	mail := mailer.New(buildCFG.BuildMailerConfig(cfg, &log), &log)

	serviceInstance := service.NewService(repository, &log, broadcaster, credential.NewIssuer(credentialSecret),
		service.WithMailer(mail),
		service.WithStoreTimeout(timeouts.Store),
		service.WithPublishTimeout(timeouts.Publish),
	)

	reader := rabbitReader.NewReader(rmq, serviceInstance, &log)
	reader.Start(workerCtx)

	app := api.NewRouters(&api.Routers{
		Service:        serviceInstance,
		Realtime:       hub,
		Auth:           auth.NewVerifier(authCfg),
		Intents:        payment.NewStripeIntents(paymentCfg.SecretKey, paymentCfg.Currency),
		Webhooks:       payment.NewVerifier(paymentCfg.WebhookSecret),
		Queue:          rmq,
		FrontendURL:    serverCfg.FrontendURL,
		Log:            &log,
		PublishTimeout: timeouts.Publish,
	})

	srv := &http.Server{
		Addr:    ":" + serverCfg.Port,
		Handler: app,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	cancelWorkers()
	reader.Stop()
	<-broadcastDone

	if migrations.DownOnExit {
		log.Info().Msg("Rolling back migrations...")
		if err := repository.MigrateDown(context.Background(), migrationPath); err != nil {
			log.Error().Msgf("failed to rollback migrations: %v", err)
		} else {
			log.Info().Msg("Migrations rolled back successfully")
		}
	}
	log.Info().Msg("Shutdown complete")
}
