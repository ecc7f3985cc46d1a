package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	eventstore "github.com/aneshas/cockroach-eventstore"
	"github.com/aneshas/cockroach-eventstore/internal/httpapi"
)

func newServeCommand(flags *storeFlags) *cobra.Command {
	var (
		addr            string
		jwtSecret       string
		accessLog       bool
		migrate         bool
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the event store over HTTP",
		Long: `Serve the event store over HTTP until interrupted.
When --jwt-secret is set (or $EVENTSTORE_JWT_SECRET), every /api request
needs a bearer token issued with the token command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []eventstore.Option

			if migrate {
				extra = append(extra, eventstore.WithMigration())
			}

			es, err := flags.open(extra...)
			if err != nil {
				return err
			}

			defer es.Close()

			if !flags.debug {
				gin.SetMode(gin.ReleaseMode)
			}

			opts := []httpapi.Option{
				httpapi.WithLogger(flags.logger()),
			}

			if jwtSecret != "" {
				opts = append(opts, httpapi.WithJWTSecret(jwtSecret))
			}

			if accessLog {
				opts = append(opts, httpapi.WithAccessLog())
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return httpapi.NewServer(es, opts...).Run(ctx, addr, shutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", os.Getenv("EVENTSTORE_JWT_SECRET"), "HS256 secret bearer tokens are verified with")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "Log every request")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create the events table before serving")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Time in-flight requests get to complete on shutdown")

	return cmd
}
