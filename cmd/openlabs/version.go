package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenLabsHQ/openlabs-api/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}
