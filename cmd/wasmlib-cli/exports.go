package main

import (
	"fmt"
	"io"

	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/types"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var exportsCmd = &cobra.Command{
	Use:   "exports <contract>",
	Short: "List the entry points of a deployed contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close(cmd.Context())

		funcs, views, err := engine.Exports(args[0])
		if err != nil {
			return err
		}
		printExports(cmd.OutOrStdout(), funcs, views)
		return nil
	},
}

func printExports(w io.Writer, funcs, views []string) {
	title := cases.Title(language.English)
	for _, group := range []struct {
		kind  string
		flag  int32
		names []string
	}{
		{"funcs", 0, funcs},
		{"views", types.ExportViewFlag, views},
	} {
		fmt.Fprintf(w, "%s:\n", title.String(group.kind))
		for i, name := range group.names {
			fmt.Fprintf(w, "  0x%04x  %s  %s\n", int32(i)|group.flag, core.NewHname(name), name)
		}
	}
}
