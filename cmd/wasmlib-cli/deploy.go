package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	wasmFile     string
	contractName string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a contract",
	Long: `Deploy a compiled contract. The module is loaded once to read its entry points and
check the library version before it is stored in the repository.
Example: wasmlib-cli deploy -f counter.wasm -n counter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(wasmFile)
		if err != nil {
			return fmt.Errorf("failed to read wasm file: %w", err)
		}
		if contractName == "" {
			contractName = strings.TrimSuffix(filepath.Base(wasmFile), filepath.Ext(wasmFile))
		}

		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close(cmd.Context())

		stored, err := engine.Deploy(cmd.Context(), contractName, code)
		if err != nil {
			return fmt.Errorf("failed to deploy contract: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Contract deployed successfully!\n")
		fmt.Fprintf(out, "Contract name: %s (%s)\n", stored.Name, stored.Hname)
		fmt.Fprintf(out, "Code hash: %s\n", stored.Hash)
		printExports(out, stored.Funcs, stored.Views)
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVarP(&wasmFile, "file", "f", "", "Compiled contract (required)")
	deployCmd.Flags().StringVarP(&contractName, "name", "n", "", "Contract name, defaults to the file name")
	deployCmd.MarkFlagRequired("file")
}
