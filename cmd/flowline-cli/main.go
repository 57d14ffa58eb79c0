// Flowline CLI — инструмент командной строки для управления
// workflow и инстансами через HTTP API.
//
// Использование:
//
//	flowline [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	workflow  Управление workflow (list, show, start, fire, resume, stats)
//	instance  Просмотр инстансов (history)
//	reload    Перечитать манифест на сервере
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowline/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "flowline",
		Short:         "Flowline CLI — workflow orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewWorkflowCmd(clientFn, outputFn),
		cli.NewInstanceCmd(clientFn, outputFn),
		cli.NewReloadCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
