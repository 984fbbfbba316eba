package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleEnableCmd(clientFn, outputFn, true),
		newScheduleEnableCmd(clientFn, outputFn, false),
		newScheduleDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateScheduleRequest
	var values []string

	cmd := &cobra.Command{
		Use:   "create ID",
		Short: "Create or replace a schedule",
		Long: `Create or replace a schedule for a template.

The rule is a cron expression (e.g. "0 9 * * *", "@hourly") for recurring
runs or an RFC3339 timestamp for a single run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseKeyValues(values)
			if err != nil {
				return err
			}
			req.ID = args[0]
			req.Data = data

			schedule, err := clientFn().CreateSchedule(req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Notice(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Schedule(schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.TemplateID, "template", "", "Template ID (required)")
	cmd.Flags().StringVar(&req.Rule, "rule", "", "Cron expression or RFC3339 time (required)")
	cmd.Flags().StringVar(&req.Scope, "scope", "", "Run scope")
	cmd.Flags().StringSliceVar(&values, "set", nil, "Run context values as KEY=VALUE (repeatable)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("rule")

	return cmd
}

func newScheduleEnableCmd(clientFn func() *Client, outputFn func() *Output, enabled bool) *cobra.Command {
	use, short, done := "enable ID", "Enable a schedule", "enabled"
	if !enabled {
		use, short, done = "disable ID", "Disable a schedule", "disabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().SetScheduleEnabled(args[0], enabled); err != nil {
				return err
			}

			outputFn().Notice(fmt.Sprintf("Schedule %s: %s", done, args[0]))
			return nil
		},
	}
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteSchedule(args[0]); err != nil {
				return err
			}

			outputFn().Notice(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}
