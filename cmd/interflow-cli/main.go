// Interflow CLI — инструмент командной строки для управления
// flows, runs, интерфейсами, credentials и расписаниями через HTTP API.
//
// Использование:
//
//	interflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	flow        Управление flows (включая execute, import и export)
//	run         Просмотр runs и трасс выполнения
//	interface   Управление исходящими интерфейсами
//	credential  Управление credentials
//	schedule    Управление расписаниями
//	kinds       Список зарегистрированных kind'ов узлов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/torbel/Interflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "interflow",
		Short:         "Interflow CLI — flow execution engine client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPIURL(), "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewFlowCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewInterfaceCmd(clientFn, outputFn),
		cli.NewCredentialCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewKindsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultAPIURL() string {
	if v := os.Getenv("INTERFLOW_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}
