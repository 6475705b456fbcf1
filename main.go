package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "riskadmin/internal/config"
	router "riskadmin/internal/http"
	"riskadmin/internal/outbox"
	"riskadmin/internal/repositories"
	"riskadmin/internal/utils"
	"riskadmin/internal/workflow"
)

func main() {
	env, err := intconfig.LoadEnv()
	if err != nil {
		utils.Logger().Fatal().Err(err).Msg("invalid configuration")
	}
	utils.ConfigureLogger(os.Stdout, env.LogLevel, env.LogPretty)
	log := utils.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := intconfig.ConnectDB(ctx, env)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer intconfig.CloseDB()

	machine := workflow.New(database)
	repos := repositories.NewSet(machine)

	var notifier outbox.Notifier = outbox.LogNotifier{}
	if env.NotifyURL != "" {
		notifier = outbox.NewHTTPNotifier(env.NotifyURL, env.NotifyTimeout)
	}
	dispatcher := outbox.NewDispatcher(outbox.NewStore(database), notifier, outbox.Config{
		PollInterval: env.OutboxPollInterval,
		BatchSize:    env.OutboxBatchSize,
		MaxAttempts:  env.OutboxMaxAttempts,
		LeaseTTL:     env.OutboxLeaseTTL,
		RetryBackoff: env.OutboxRetryBackoff,
	})
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		_ = dispatcher.Run(ctx)
	}()

	r := router.NewRouter(env, database, repos)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           http.TimeoutHandler(r, env.RequestTimeout, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      env.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", env.AppAddr).Str("driver", env.DBDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	<-dispatchDone
	log.Info().Msg("server stopped")
}
