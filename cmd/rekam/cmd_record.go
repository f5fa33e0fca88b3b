package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kafji.net/rekam/macrofile"
	"kafji.net/rekam/rekam/record"
)

func init() {
	recordCmd.Flags().StringVar(&recordName, "name", "", "macro name (defaults to the file name)")
	rootCmd.AddCommand(recordCmd)
}

var recordName string

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record a macro from the configured input device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		name := recordName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		f, err := record.Run(cmd.Context(), cfg, name)
		if err != nil {
			return err
		}

		err = macrofile.Save(path, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "recorded %d states to %s\n", len(f.States), path)
		return nil
	},
}
