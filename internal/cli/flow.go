package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var flowHeaders = []string{"ID", "NAME", "VERSION", "ENABLED", "NODES", "CREATED"}

func flowRow(f FlowResponse) []string {
	return []string{
		f.ID,
		f.Name,
		strconv.Itoa(f.Version),
		strconv.FormatBool(f.IsEnabled),
		strconv.Itoa(len(f.Nodes)),
		f.CreatedAt,
	}
}

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowUpdateCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowEnableCmd(clientFn, outputFn),
		newFlowDisableCmd(clientFn, outputFn),
		newFlowExecuteCmd(clientFn, outputFn),
		newFlowValidateCmd(clientFn, outputFn),
		newFlowImportCmd(clientFn, outputFn),
		newFlowExportCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = flowRow(f)
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var defFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a flow from a graph definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := readDefinitionFile(defFile)
			if err != nil {
				return err
			}

			flow, err := client.CreateFlow(CreateFlowRequest{
				Name:  name,
				Nodes: def.Nodes,
				Edges: def.Edges,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Flow name (required)")
	cmd.Flags().StringVar(&defFile, "file", "", "Path to graph definition JSON file with nodes and edges (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}
}

func newFlowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var defFile string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateFlowRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if defFile != "" {
				def, err := readDefinitionFile(defFile)
				if err != nil {
					return err
				}
				req.Nodes = &def.Nodes
				req.Edges = &def.Edges
			}

			flow, err := client.UpdateFlow(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Flow updated")
			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New flow name")
	cmd.Flags().StringVar(&defFile, "file", "", "Path to graph definition JSON file replacing nodes and edges")

	return cmd
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a flow for execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.SetFlowEnabled(args[0], true)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow enabled: %s", flow.Name))
			return nil
		},
	}
}

func newFlowDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.SetFlowEnabled(args[0], false)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow disabled: %s", flow.Name))
			return nil
		},
	}
}

func newFlowExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var inputFile string
	var triggeredBy string

	cmd := &cobra.Command{
		Use:   "execute ID",
		Short: "Execute a flow and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input, err := collectInput(inputs, inputFile)
			if err != nil {
				return err
			}

			run, err := client.ExecuteFlow(args[0], ExecuteFlowRequest{
				Input:       input,
				TriggeredBy: triggeredBy,
			})
			if err != nil {
				return err
			}

			out.Print(runHeaders, [][]string{runRow(*run)}, run)

			// Ненулевой код выхода, когда run упал: иначе скрипты не заметят
			if run.Status == "FAILED" {
				if run.ErrorNodeID != "" {
					return fmt.Errorf("run failed at node %s: %s", run.ErrorNodeID, run.Error)
				}
				return fmt.Errorf("run failed: %s", run.Error)
			}

			out.Success(fmt.Sprintf("Run %s: %s", run.Status, run.ID))
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input value as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "Path to JSON file with input values")
	cmd.Flags().StringVar(&triggeredBy, "triggered-by", "cli", "Trigger label recorded on the run")

	return cmd
}

func newFlowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Validate a stored flow, including node kinds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.ValidateFlow(args[0])
			if err != nil {
				return err
			}

			if !res.Valid {
				if res.NodeID != "" {
					return fmt.Errorf("flow is invalid at node %s: %s", res.NodeID, res.Error)
				}
				return fmt.Errorf("flow is invalid: %s", res.Error)
			}

			out.Success("Flow is valid")
			return nil
		},
	}
}

func newFlowImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var enable bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create a flow from a step list file (YAML or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read step list file: %w", err)
			}

			// JSON — валидный YAML, один парсер покрывает оба формата
			var list map[string]any
			if err := yaml.Unmarshal(data, &list); err != nil {
				return fmt.Errorf("parse step list: %w", err)
			}

			compiled, err := client.CompileFlow(list)
			if err != nil {
				return err
			}

			flowName := compiled.Name
			if name != "" {
				flowName = name
			}

			flow, err := client.CreateFlow(CreateFlowRequest{
				Name:  flowName,
				Nodes: compiled.Nodes,
				Edges: compiled.Edges,
			})
			if err != nil {
				return err
			}

			if enable {
				flow, err = client.SetFlowEnabled(flow.ID, true)
				if err != nil {
					return err
				}
			}

			out.Success(fmt.Sprintf("Flow imported: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Override the flow name from the file")
	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the flow right after import")

	return cmd
}

func newFlowExportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var format string
	var outFile string

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a flow as a step list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := client.ExportFlow(args[0], format)
			if err != nil {
				return err
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, data, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				out.Success(fmt.Sprintf("Flow exported to %s", outFile))
				return nil
			}

			out.Raw(data)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Export format: yaml (default) or json")
	cmd.Flags().StringVar(&outFile, "output", "", "Write to file instead of stdout")

	return cmd
}

// NewKindsCmd создаёт команду списка зарегистрированных kind'ов узлов.
func NewKindsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List registered node kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			kinds, err := client.ListKinds()
			if err != nil {
				return err
			}

			rows := make([][]string, len(kinds))
			for i, k := range kinds {
				rows[i] = []string{k}
			}

			out.Print([]string{"KIND"}, rows, kinds)
			return nil
		},
	}
}

// readDefinitionFile читает файл с графом flow: {"nodes": [...], "edges": [...]}.
func readDefinitionFile(path string) (*CreateFlowRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition file: %w", err)
	}

	var def CreateFlowRequest
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("definition file is not valid JSON: %w", err)
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("definition file has no nodes")
	}
	return &def, nil
}

// collectInput собирает вход run'а: JSON-файл даёт типизированные
// значения, пары --input KEY=VALUE кладут строки поверх.
func collectInput(pairs []string, file string) (map[string]any, error) {
	input := map[string]any{}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("input file is not valid JSON: %w", err)
		}
	}

	for _, kv := range pairs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --input %q, expected KEY=VALUE", kv)
		}
		input[parts[0]] = parts[1]
	}

	if len(input) == 0 {
		return nil, nil
	}
	return input, nil
}
