package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var ifaceHeaders = []string{"ID", "NAME", "PROTOCOL", "BASE_URL", "AUTH", "ENABLED"}

func ifaceRow(i InterfaceResponse) []string {
	return []string{
		i.ID,
		i.Name,
		i.Protocol,
		i.BaseURL,
		i.Auth.Type,
		strconv.FormatBool(i.IsEnabled),
	}
}

// NewInterfaceCmd создаёт группу команд для управления интерфейсами.
func NewInterfaceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interface",
		Aliases: []string{"iface"},
		Short:   "Manage outbound interfaces",
	}

	cmd.AddCommand(
		newIfaceListCmd(clientFn, outputFn),
		newIfaceCreateCmd(clientFn, outputFn),
		newIfaceShowCmd(clientFn, outputFn),
		newIfaceUpdateCmd(clientFn, outputFn),
		newIfaceDeleteCmd(clientFn, outputFn),
		newIfaceEnableCmd(clientFn, outputFn),
		newIfaceDisableCmd(clientFn, outputFn),
		newIfaceTestCmd(clientFn, outputFn),
	)

	return cmd
}

func newIfaceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List interfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ifaces, err := client.ListInterfaces()
			if err != nil {
				return err
			}

			rows := make([][]string, len(ifaces))
			for i, it := range ifaces {
				rows[i] = ifaceRow(it)
			}

			out.Print(ifaceHeaders, rows, ifaces)
			return nil
		},
	}
}

func newIfaceCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		name         string
		protocol     string
		baseURL      string
		contentType  string
		timeoutSec   int
		emulate      bool
		headers      []string
		authType     string
		credentialID string
		authHeader   string
		bodyFile     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var body any
			if bodyFile != "" {
				// Полное описание из файла: auth, retry, schema и прочее
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read interface file: %w", err)
				}
				if !json.Valid(data) {
					return fmt.Errorf("interface file is not valid JSON")
				}
				body = json.RawMessage(data)
			} else {
				if name == "" || baseURL == "" {
					return fmt.Errorf("either --file or both --name and --base-url are required")
				}
				req := map[string]any{
					"name":     name,
					"base_url": baseURL,
				}
				if protocol != "" {
					req["protocol"] = protocol
				}
				if contentType != "" {
					req["content_type"] = contentType
				}
				if timeoutSec > 0 {
					req["timeout_sec"] = timeoutSec
				}
				if emulate {
					req["emulate"] = true
				}
				if len(headers) > 0 {
					h, err := parsePairs(headers, "--header")
					if err != nil {
						return err
					}
					req["headers"] = h
				}
				if authType != "" {
					auth := map[string]any{"type": authType}
					if credentialID != "" {
						auth["credential_id"] = credentialID
					}
					if authHeader != "" {
						auth["header_name"] = authHeader
					}
					req["auth"] = auth
				}
				body = req
			}

			iface, err := client.CreateInterface(body)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Interface created: %s", iface.ID))
			out.Print(ifaceHeaders, [][]string{ifaceRow(*iface)}, iface)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Interface name")
	cmd.Flags().StringVar(&protocol, "protocol", "", "Protocol: rest, soap or graphql (default rest)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL of the remote system")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content-Type for outbound calls")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Call timeout in seconds")
	cmd.Flags().BoolVar(&emulate, "emulate", false, "Emulate calls instead of reaching the remote")
	cmd.Flags().StringSliceVar(&headers, "header", nil, "Static header as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&authType, "auth-type", "", "Auth type: none, api_key, basic, bearer, oauth2_client, jwt_assertion")
	cmd.Flags().StringVar(&credentialID, "credential-id", "", "Credential ID for the auth type")
	cmd.Flags().StringVar(&authHeader, "auth-header", "", "Header name for api_key auth")
	cmd.Flags().StringVar(&bodyFile, "file", "", "Path to full interface JSON (overrides other flags)")

	return cmd
}

func newIfaceShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show interface details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			iface, err := client.GetInterface(args[0])
			if err != nil {
				return err
			}

			out.Print(ifaceHeaders, [][]string{ifaceRow(*iface)}, iface)
			return nil
		},
	}
}

func newIfaceUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		name        string
		protocol    string
		baseURL     string
		contentType string
		timeoutSec  int
		emulate     bool
		bodyFile    string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var body any
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read interface file: %w", err)
				}
				if !json.Valid(data) {
					return fmt.Errorf("interface file is not valid JSON")
				}
				body = json.RawMessage(data)
			} else {
				req := map[string]any{}
				if cmd.Flags().Changed("name") {
					req["name"] = name
				}
				if cmd.Flags().Changed("protocol") {
					req["protocol"] = protocol
				}
				if cmd.Flags().Changed("base-url") {
					req["base_url"] = baseURL
				}
				if cmd.Flags().Changed("content-type") {
					req["content_type"] = contentType
				}
				if cmd.Flags().Changed("timeout") {
					req["timeout_sec"] = timeoutSec
				}
				if cmd.Flags().Changed("emulate") {
					req["emulate"] = emulate
				}
				if len(req) == 0 {
					return fmt.Errorf("nothing to update, pass flags or --file")
				}
				body = req
			}

			iface, err := client.UpdateInterface(args[0], body)
			if err != nil {
				return err
			}

			out.Success("Interface updated")
			out.Print(ifaceHeaders, [][]string{ifaceRow(*iface)}, iface)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New interface name")
	cmd.Flags().StringVar(&protocol, "protocol", "", "New protocol")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "New base URL")
	cmd.Flags().StringVar(&contentType, "content-type", "", "New Content-Type")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "New call timeout in seconds")
	cmd.Flags().BoolVar(&emulate, "emulate", false, "Toggle call emulation")
	cmd.Flags().StringVar(&bodyFile, "file", "", "Path to partial interface JSON (overrides other flags)")

	return cmd
}

func newIfaceDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteInterface(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Interface deleted: %s", args[0]))
			return nil
		},
	}
}

func newIfaceEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			iface, err := client.SetInterfaceEnabled(args[0], true)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Interface enabled: %s", iface.Name))
			return nil
		},
	}
}

func newIfaceDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			iface, err := client.SetInterfaceEnabled(args[0], false)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Interface disabled: %s", iface.Name))
			return nil
		},
	}
}

func newIfaceTestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		method     string
		path       string
		queries    []string
		headers    []string
		bodyStr    string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "test ID",
		Short: "Perform a test call through an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := TestCallRequest{
				Method:     method,
				Path:       path,
				TimeoutSec: timeoutSec,
			}

			if len(queries) > 0 {
				q, err := parsePairs(queries, "--query")
				if err != nil {
					return err
				}
				req.Query = q
			}
			if len(headers) > 0 {
				h, err := parsePairs(headers, "--header")
				if err != nil {
					return err
				}
				req.Headers = h
			}
			if bodyStr != "" {
				// JSON как структура, всё остальное (XML для SOAP) как строка
				var v any
				if err := json.Unmarshal([]byte(bodyStr), &v); err == nil {
					req.Body = v
				} else {
					req.Body = bodyStr
				}
			}

			res, err := client.TestInterface(args[0], req)
			if err != nil {
				return err
			}

			row := []string{
				strconv.Itoa(res.StatusCode),
				strconv.Itoa(len(res.Attempts)),
				strconv.FormatBool(res.Emulated),
				res.Error,
			}
			out.Print([]string{"STATUS", "ATTEMPTS", "EMULATED", "ERROR"}, [][]string{row}, res)

			if res.Error != "" {
				return fmt.Errorf("test call failed: %s", res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "", "HTTP method (default GET)")
	cmd.Flags().StringVar(&path, "path", "", "Path appended to the interface base URL")
	cmd.Flags().StringSliceVar(&queries, "query", nil, "Query parameter as KEY=VALUE (repeatable)")
	cmd.Flags().StringSliceVar(&headers, "header", nil, "Header as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&bodyStr, "body", "", "Request body: JSON or raw string")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Override call timeout in seconds")

	return cmd
}

// parsePairs разбирает пары KEY=VALUE из повторяемого флага.
func parsePairs(pairs []string, flagName string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid %s %q, expected KEY=VALUE", flagName, kv)
		}
		m[parts[0]] = parts[1]
	}
	return m, nil
}
