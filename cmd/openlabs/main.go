package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:          "openlabs",
		Short:        "OpenLabs cyber range control plane",
		SilenceUsage: true,

		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd.AddCommand(newAPIServerCommand())
	cmd.AddCommand(newWorkerCommand())
	cmd.AddCommand(newVersionCommand())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		_, _ = fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
