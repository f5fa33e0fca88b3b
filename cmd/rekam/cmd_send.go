package main

import (
	"errors"

	"github.com/spf13/cobra"

	"kafji.net/rekam/macrofile"
	"kafji.net/rekam/transport/client"
)

func init() {
	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "receiver address (defaults to the config value)")
	rootCmd.AddCommand(sendCmd)
}

var sendAddr string

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Send a recorded macro to a remote receiver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := macrofile.Load(args[0])
		if err != nil {
			return err
		}
		states, err := f.Decode()
		if err != nil {
			return err
		}

		addr := sendAddr
		if addr == "" {
			addr = cfg.Send.ServerAddr
		}
		if addr == "" {
			return errors.New("receiver address is not configured")
		}

		return client.Send(cmd.Context(), &client.Config{
			Addr:              addr,
			TLSCertPath:       cfg.Send.TLSCertPath,
			TLSKeyPath:        cfg.Send.TLSKeyPath,
			ServerTLSCertPath: cfg.Send.ServerTLSCertPath,
		}, states)
	},
}
