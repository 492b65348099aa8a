package main

import (
	"fmt"

	"github.com/govm-net/wasmlib/core"
	"github.com/spf13/cobra"
)

var callerID string

var callCmd = &cobra.Command{
	Use:   "call <contract> <function> [key[:type]=value]...",
	Short: "Call an entry point of a deployed contract",
	Long: `Call an entry point of a deployed contract and print its results.
Params default to strings; supported types are string, bytes (hex), bool, int8..int64,
uint8..uint64, hname, address, agentid, chainid and hash (base58).
Example: wasmlib-cli call counter increment amount:int64=5`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(args[2:])
		if err != nil {
			return err
		}
		var caller core.ScAgentID
		if callerID != "" {
			if caller, err = core.AgentIDFromString(callerID); err != nil {
				return err
			}
		}

		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close(cmd.Context())

		results, err := engine.Call(cmd.Context(), caller, args[0], args[1], params)
		if err != nil {
			return fmt.Errorf("failed to call contract: %w", err)
		}

		out := cmd.OutOrStdout()
		results.Each(func(key, value []byte) bool {
			fmt.Fprintf(out, "%s = %s\n", key, formatValue(value))
			return true
		})
		return nil
	},
}

func init() {
	callCmd.Flags().StringVar(&callerID, "caller", "", "Caller agent id (base58)")
}
