package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "canvasbridge",
		Short:         "Bridge between an agent control plane and a design-tool executor",
		Long:          "canvasbridge hosts a WebSocket endpoint for a design-tool executor plugin\nand dispatches schema-validated operations to it, correlating replies by id.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}
