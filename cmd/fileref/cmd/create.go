// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Print the fileref of a file",
	Long: `Print the fileref of a file, directory or symbolic link as JSON.

Blobs are not stored: only their content ids are computed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := filerefOptions()
		if err != nil {
			wrapFatalln("invalid settings", err)
			return
		}
		if params.archive.namespace != "" {
			opts = append(opts, fileref.Namespace(params.archive.namespace))
		}
		f, err := fileref.Create(args[0], opts...)
		if err != nil {
			wrapFatalln("create fileref", err)
			return
		}
		b, err := fileref.Encode(f)
		if err != nil {
			wrapFatalln("encode fileref", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	},
}

func init() {
	addNamespaceFlag(createCmd)
	rootCmd.AddCommand(createCmd)
}
