package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/steps"
)

// NewTemplateCmd создаёт группу команд для шаблонов workflow.
func NewTemplateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage workflow templates",
	}

	cmd.AddCommand(
		newTemplateApplyCmd(clientFn, outputFn),
		newTemplateShowCmd(clientFn, outputFn),
		newTemplateRunCmd(clientFn, outputFn),
	)

	return cmd
}

func newTemplateApplyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply FILE",
		Short: "Validate and publish a template from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}

			// Проверяем локально, чтобы не гонять заведомо невалидный шаблон
			tmpl, err := engine.ParseTemplate(data, steps.DefaultRegistry())
			if err != nil {
				return err
			}
			if dryRun {
				out.Notice(fmt.Sprintf("Template %s is valid (%d steps)", tmpl.ID, len(tmpl.Steps)))
				return nil
			}

			applied, err := clientFn().ApplyTemplate(data)
			if err != nil {
				return err
			}

			out.Notice(fmt.Sprintf("Template applied: %s (version %d)", applied.ID, applied.Version))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only validate the template")

	return cmd
}

func newTemplateShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show template details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := clientFn().GetTemplate(args[0])
			if err != nil {
				return err
			}

			outputFn().Template(tmpl)
			return nil
		},
	}
}

func newTemplateRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req InvokeRequest
	var values []string

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Start a run from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctxValues, err := parseKeyValues(values)
			if err != nil {
				return err
			}
			req.Context = ctxValues

			resp, err := clientFn().InvokeTemplate(args[0], req)
			if err != nil {
				return err
			}

			outputFn().Accepted(resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.RunID, "run-id", "", "Run ID (generated if empty)")
	cmd.Flags().StringVar(&req.Scope, "scope", "", "Run scope")
	cmd.Flags().StringVar(&req.CancelationToken, "token", "", "Cancelation token")
	cmd.Flags().StringSliceVar(&values, "set", nil, "Context values as KEY=VALUE (repeatable)")

	return cmd
}
