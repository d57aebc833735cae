package main

import (
	"github.com/spf13/cobra"

	"github.com/OpenLabsHQ/openlabs-api/cmd/log"
	"github.com/OpenLabsHQ/openlabs-api/provisioner"
	"github.com/OpenLabsHQ/openlabs-api/store"
	"github.com/OpenLabsHQ/openlabs-api/support/config"
	"github.com/OpenLabsHQ/openlabs-api/worker"
)

func newWorkerCommand() *cobra.Command {
	var development bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the range deployment worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.New(development).WithName("worker")

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

			w := &worker.Worker{
				Store: st,
				Driver: &provisioner.Driver{
					Workdir: settings.CDKTFDir,
					Binary:  settings.TerraformBinary,
					Log:     logger.WithName("provisioner"),
				},
				Settings: settings,
				Log:      logger,
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&development, "development", false, "Enable human readable log output")
	return cmd
}
