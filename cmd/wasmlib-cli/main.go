package main

import (
	"fmt"
	"os"

	"github.com/govm-net/wasmlib/config"
	"github.com/govm-net/wasmlib/vm"
	"github.com/govm-net/wasmlib/wasi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wasmlib-cli",
	Short: "Contract host command line tool",
	Long: `Contract host command line tool for deploying and calling WebAssembly contracts
built against wasmlib.

Configuration is read from --config, wasmlib.yaml or configs/wasmlib.yaml and can be
overridden with WASMLIB_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file")
	rootCmd.AddCommand(hnameCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(exportsCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(inspectCmd)
}

// openEngine loads the configuration, sets up logging and creates the engine
func openEngine() (*vm.Engine, error) {
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return nil, err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.Encoding = "console"
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	wasi.SetLogger(logger)

	engine, err := vm.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM engine: %w", err)
	}
	return engine, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
