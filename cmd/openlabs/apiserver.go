package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenLabsHQ/openlabs-api/cmd/log"
	"github.com/OpenLabsHQ/openlabs-api/queue"
	"github.com/OpenLabsHQ/openlabs-api/server"
	"github.com/OpenLabsHQ/openlabs-api/store"
	"github.com/OpenLabsHQ/openlabs-api/support/config"
)

func newAPIServerCommand() *cobra.Command {
	var development bool

	cmd := &cobra.Command{
		Use:   "api-server",
		Short: "Run the HTTP API front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.New(development).WithName("api-server")

			settings, err := config.Load()
			if err != nil {
				return err
			}

			st, err := store.New(ctx, settings.PostgresURI(), logger.WithName("store"))
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Bootstrap(ctx); err != nil {
				return err
			}

			q := queue.New(settings.RedisAddr(), settings.RedisQueuePassword, settings.RedisQueueDB)
			defer func() {
				if err := q.Close(); err != nil {
					logger.Error(err, "closing queue")
				}
			}()

			srv := server.New(st, q, settings, logger)
			if err := srv.BootstrapAdmin(ctx); err != nil {
				return fmt.Errorf("bootstrapping admin account: %w", err)
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&development, "development", false, "Enable human readable log output")
	return cmd
}
