package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect and cancel runs",
	}

	cmd.AddCommand(
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := clientFn().GetRun(args[0])
			if err != nil {
				return err
			}

			outputFn().Run(run)
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel TOKEN",
		Short: "Cancel all runs with a cancelation token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().CancelRuns(args[0]); err != nil {
				return err
			}

			outputFn().Notice(fmt.Sprintf("Cancel accepted for token %s", args[0]))
			return nil
		},
	}
}

// NewEventCmd создаёт группу команд для внешних событий.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Send external events to waiting steps",
	}

	var eventID string
	var values []string

	send := &cobra.Command{
		Use:   "send REF",
		Short: "Resume the step registered under REF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseKeyValues(values)
			if err != nil {
				return err
			}

			if err := clientFn().SendEvent(args[0], EventRequest{EventID: eventID, Payload: payload}); err != nil {
				return err
			}

			outputFn().Notice(fmt.Sprintf("Event accepted for ref %s", args[0]))
			return nil
		},
	}
	send.Flags().StringVar(&eventID, "event-id", "", "Source event ID for deduplication")
	send.Flags().StringSliceVar(&values, "set", nil, "Payload values as KEY=VALUE (repeatable)")

	cmd.AddCommand(send)
	return cmd
}

// parseKeyValues разбирает пары KEY=VALUE.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid value format %q, expected KEY=VALUE", kv)
		}
		values[parts[0]] = parts[1]
	}
	return values, nil
}
