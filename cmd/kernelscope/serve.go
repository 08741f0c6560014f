package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/gomlx/kernelscope/internal/logger"
	"github.com/gomlx/kernelscope/internal/server"
)

// startServer runs e until ctx is done. Tests replace it to avoid listening.
var startServer = func(ctx context.Context, sc echo.StartConfig, e *echo.Echo) error {
	return sc.Start(ctx, e)
}

func serveCmd(opts *options) *cli.Command {
	var (
		addr              string
		readHeaderTimeout time.Duration
		maxBodyBytes      int64
	)
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the inspection API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-header-timeout",
				Usage:       "read header timeout",
				Value:       10 * time.Second,
				Destination: &readHeaderTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-body-bytes",
				Usage:       "maximum request body size",
				Value:       server.DefaultMaxBodyBytes,
				Destination: &maxBodyBytes,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, opts.config, &addr)

			d, err := opts.resolveDialect()
			if err != nil {
				return err
			}
			srv := server.New(log.WithGroup("server"),
				server.WithDialect(d),
				server.WithMaxBodyBytes(maxBodyBytes),
			)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			srv.Register(e)

			log.Info("starting server", "address", addr, "dialect", d.Name)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(s *http.Server) error {
					s.ReadHeaderTimeout = readHeaderTimeout
					return nil
				},
			}
			return startServer(ctx, sc, e)
		},
	}
}
