package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/internal/infra/database"
	"github.com/totegamma/ilp3/internal/infra/tracing"
	"github.com/totegamma/ilp3/internal/service"
	"github.com/totegamma/ilp3/receiver"
)

var (
	serveListen string
	serveSecret string
	serveStream bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a receiver that fulfills transfers from the configured table",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides receiver.listen)")
	serveCmd.Flags().StringVar(&serveSecret, "secret", "", "base64 token secret (overrides receiver.secret)")
	serveCmd.Flags().BoolVar(&serveStream, "stream", false, "hand request bodies to the settler as streams")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveListen != "" {
		conf.Receiver.Listen = serveListen
	}
	if serveSecret != "" {
		secret, err := base64.StdEncoding.DecodeString(serveSecret)
		if err != nil {
			return errors.New("--secret must be base64")
		}
		conf.Receiver.SecretBytes = secret
	}
	if serveStream {
		conf.Receiver.StreamData = true
	}
	if len(conf.Receiver.SecretBytes) == 0 {
		return errors.New("a receiver secret is required (receiver.secret or --secret)")
	}

	if conf.Server.EnableTrace {
		shutdown, err := tracing.Setup(ctx, conf.Server.TraceEndpoint, "ilp3")
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	var publisher service.Publisher
	if rdb := database.NewRedis(conf.Server); rdb != nil {
		defer rdb.Close()
		publisher = service.NewSignalService(rdb)
	}
	settlement := service.NewSettlementService(conf.Fulfillments, publisher, conf.Server.EventChannel, nil)

	e, err := receiver.New(receiver.Config{
		Path:       conf.Receiver.Path,
		Secret:     conf.Receiver.SecretBytes,
		StreamData: conf.Receiver.StreamData,
		BodyLimit:  conf.Receiver.BodyLimit,
	}, settlement)
	if err != nil {
		return err
	}
	e.Use(middleware.Logger())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", slog.Any("error", err))
		}
	}()

	slog.Info("receiver listening",
		slog.String("addr", conf.Receiver.Listen),
		slog.Bool("streamData", conf.Receiver.StreamData),
		slog.Int64("bodyLimit", bodyLimitOrDefault(conf.Receiver.BodyLimit)),
	)
	if err := e.Start(conf.Receiver.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func bodyLimitOrDefault(limit int64) int64 {
	if limit <= 0 {
		return ilp3.DefaultBodyLimit
	}
	return limit
}
