package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"tokenqueue/pkg/domain/service"
	"tokenqueue/pkg/infrastructure/config"
	"tokenqueue/pkg/infrastructure/store"
	"tokenqueue/pkg/infrastructure/transport"
)

const (
	appName         = "tokenqueue"
	shutdownTimeout = 5 * time.Second
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	app := &cli.App{
		Name:  appName,
		Usage: "order queue backend issuing sequential customer tokens",
		Commands: []*cli.Command{
			{
				Name:   "runserver",
				Usage:  "start the REST API server",
				Flags:  serverFlags(),
				Action: runServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("service stopped")
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "serve-rest-address", Usage: "address the REST API listens on"},
		&cli.StringFlag{Name: "db-driver", Usage: "database driver, sqlite3 or mysql"},
		&cli.StringFlag{Name: "db-dsn", Usage: "database DSN, a file path for sqlite3"},
		&cli.StringFlag{Name: "log-level", Usage: "log level: debug, info, warn or error"},
	}
}

func runServer(c *cli.Context) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	overrideFromFlags(c, cfg)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	db, err := store.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = db.Initialize(c.Context); err != nil {
		return err
	}
	log.WithField("driver", cfg.DBDriver).Info("store is ready")

	router := transport.Router(service.NewOrderService(db))
	return serve(c.Context, cfg.ServeRESTAddress, router)
}

func overrideFromFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("serve-rest-address"); v != "" {
		cfg.ServeRESTAddress = v
	}
	if v := c.String("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v := c.String("db-dsn"); v != "" {
		cfg.DBDSN = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
}

func serve(ctx context.Context, address string, handler http.Handler) error {
	srv := &http.Server{Addr: address, Handler: handler}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("url", address).Info("starting the server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		waitForKillSignal(ctx, getKillSignalChan())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func getKillSignalChan() chan os.Signal {
	osKillSignalChan := make(chan os.Signal, 1)
	signal.Notify(osKillSignalChan, os.Interrupt, syscall.SIGTERM)
	return osKillSignalChan
}

func waitForKillSignal(ctx context.Context, killSignalChan <-chan os.Signal) {
	select {
	case <-ctx.Done():
	case killSignal := <-killSignalChan:
		switch killSignal {
		case os.Interrupt:
			log.Info("got SIGINT...")
		case syscall.SIGTERM:
			log.Info("got SIGTERM...")
		}
	}
}
