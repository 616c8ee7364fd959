package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var credentialHeaders = []string{"ID", "NAME", "TYPE", "KEYS", "CREATED"}

func credentialRow(c CredentialResponse) []string {
	return []string{c.ID, c.Name, c.Type, strings.Join(c.Keys, ","), c.CreatedAt}
}

// NewCredentialCmd создаёт группу команд для управления credentials.
// Секретные значения API наружу не отдаёт, показать их отсюда нельзя.
func NewCredentialCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage credentials",
	}

	cmd.AddCommand(
		newCredentialListCmd(clientFn, outputFn),
		newCredentialCreateCmd(clientFn, outputFn),
		newCredentialShowCmd(clientFn, outputFn),
		newCredentialDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newCredentialListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			creds, err := client.ListCredentials()
			if err != nil {
				return err
			}

			rows := make([][]string, len(creds))
			for i, c := range creds {
				rows[i] = credentialRow(c)
			}

			out.Print(credentialHeaders, rows, creds)
			return nil
		},
	}
}

func newCredentialCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var credType string
	var data []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			values, err := parsePairs(data, "--data")
			if err != nil {
				return err
			}

			cred, err := client.CreateCredential(CreateCredentialRequest{
				Name: name,
				Type: credType,
				Data: values,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Credential created: %s", cred.ID))
			out.Print(credentialHeaders, [][]string{credentialRow(*cred)}, cred)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Credential name (required)")
	cmd.Flags().StringVar(&credType, "type", "", "Credential type: api_key, basic, bearer, oauth2_client, jwt_assertion (required)")
	cmd.Flags().StringSliceVar(&data, "data", nil, "Secret value as KEY=VALUE (repeatable, required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newCredentialShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show credential metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cred, err := client.GetCredential(args[0])
			if err != nil {
				return err
			}

			out.Print(credentialHeaders, [][]string{credentialRow(*cred)}, cred)
			return nil
		},
	}
}

func newCredentialDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteCredential(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Credential deleted: %s", args[0]))
			return nil
		},
	}
}
