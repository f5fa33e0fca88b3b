package main

import (
	"github.com/spf13/cobra"

	"kafji.net/rekam/macrofile"
	"kafji.net/rekam/rekam/play"
)

func init() {
	playCmd.Flags().IntVar(&playRepeat, "repeat", 0, "play the macro this many times (defaults to the config value)")
	rootCmd.AddCommand(playCmd)
}

var playRepeat int

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a recorded macro through a virtual input device",
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

		repeat := playRepeat
		if repeat == 0 {
			repeat = cfg.Play.Repeat
		}
		return play.Run(cmd.Context(), states, repeat)
	},
}
