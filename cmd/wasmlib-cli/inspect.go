package main

import (
	"fmt"
	"os"

	"github.com/govm-net/wasmlib/wasi"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <wasm file>",
	Short: "Print the imports and exports of a contract binary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read wasm file: %w", err)
		}
		info, err := wasi.Inspect(cmd.Context(), code)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Imports:")
		for _, f := range info.Imports {
			fmt.Fprintf(out, "  %s\n", f)
		}
		fmt.Fprintln(out, "Exports:")
		for _, f := range info.Exports {
			fmt.Fprintf(out, "  %s\n", f)
		}
		for _, m := range info.Memories {
			fmt.Fprintf(out, "  memory %s\n", m)
		}
		if !info.Compatible() {
			return fmt.Errorf("not a wasmlib contract: missing %v, unknown imports %v", info.Missing, info.Unknown)
		}
		return nil
	},
}
