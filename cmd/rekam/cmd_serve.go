package main

import (
	"github.com/spf13/cobra"

	"kafji.net/rekam/rekam/serve"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive macros from remote senders and play them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve.Start(cmd.Context(), cfg)
	},
}
