package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kafji.net/rekam/macrofile"
)

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the macro as JSON")
	rootCmd.AddCommand(showCmd)
}

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print a recorded macro",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := macrofile.Load(args[0])
		if err != nil {
			return err
		}

		if showJSON {
			b, err := macrofile.Marshal(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s\n", b)
			return nil
		}

		fmt.Fprintf(os.Stdout, "%s (%s, recorded %s)\n", f.Name, f.ID, f.CreatedAt)
		for i, entry := range f.States {
			line := fmt.Sprintf("%4d  %6dms", i, entry.DurationMS)
			if len(entry.Keys) > 0 {
				line += "  hold " + strings.Join(entry.Keys, "+")
			}
			if entry.MouseDelta != [2]int32{} {
				line += fmt.Sprintf("  move (%d, %d)", entry.MouseDelta[0], entry.MouseDelta[1])
			}
			if entry.ScrollDelta != [2]int32{} {
				line += fmt.Sprintf("  scroll (%d, %d)", entry.ScrollDelta[0], entry.ScrollDelta[1])
			}
			fmt.Fprintln(os.Stdout, line)
		}
		return nil
	},
}
