package main

import (
	"fmt"

	"github.com/govm-net/wasmlib/core"
	"github.com/spf13/cobra"
)

var hnameCmd = &cobra.Command{
	Use:   "hname <name>...",
	Short: "Print the hname of contract or entry point names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", core.NewHname(name), name)
		}
		return nil
	},
}
