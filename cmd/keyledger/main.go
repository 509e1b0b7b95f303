// Command keyledger runs the points ledger behind a websocket chat endpoint,
// optionally with a console session on stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/keyledger/internal/app"
	"github.com/R3E-Network/keyledger/internal/app/httpapi"
	"github.com/R3E-Network/keyledger/internal/config"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	envFile := flag.String("env", "", "Optional .env file loaded before the environment is read")
	replIdentity := flag.String("repl", "", "Open a console session on stdin as this identity")
	flag.Parse()

	if err := run(*configPath, *envFile, *replIdentity); err != nil {
		fmt.Fprintf(os.Stderr, "keyledger: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, replIdentity string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return err
	}
	defer closeStores()

	application, err := app.New(cfg, stores, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewHandler(application, httpapi.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Log:            log.Named("http"),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if replIdentity != "" {
		go func() {
			console := newConsole(replIdentity, os.Stdin, os.Stdout)
			if err := console.Run(ctx, application.Commands); err != nil {
				log.WithError(err).Warn("console session ended")
			}
			stop()
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("http server failed")
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := application.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop application: %w", err))
	}
	return errors.Join(errs...)
}
